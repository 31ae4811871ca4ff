/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package app

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/client"
	"github.com/microsoft/healthvault-client-go/pkg/config"
	"github.com/microsoft/healthvault-client-go/pkg/store"
	"github.com/microsoft/healthvault-client-go/pkg/types"
)

const defaultStorageFolder = ".healthvault"

// StartupStatus is where the app landed after Start.
type StartupStatus int

const (
	StartupFailed StartupStatus = iota
	StartupPending
	StartupSuccess
	StartupCancelled
)

func (s StartupStatus) String() string {
	switch s {
	case StartupFailed:
		return "failed"
	case StartupPending:
		return "pending"
	case StartupSuccess:
		return "success"
	case StartupCancelled:
		return "cancelled"
	}

	return "unknown"
}

// HealthVaultApp ties the pieces together: wire client, local vault, cached
// user identity. Construct once, Start, then open record stores.
type HealthVaultApp struct {
	conf   *config.Bootstrap
	client *client.Client
	vault  *LocalVault
	log    zerolog.Logger

	mu       sync.RWMutex
	status   StartupStatus
	userInfo *UserInfo
}

type AppOption func(a *HealthVaultApp)

func Logger(log *zerolog.Logger) AppOption {
	return func(a *HealthVaultApp) { a.log = *log }
}

// Client injects a preconfigured wire client, used by tests and by hosts
// that own transport construction.
func Client(c *client.Client) AppOption {
	return func(a *HealthVaultApp) { a.client = c }
}

func New(ctx context.Context, conf *config.Bootstrap, opts ...AppOption) (*HealthVaultApp, error) {
	if conf == nil {
		return nil, ErrGenericError("config is required")
	}

	a := &HealthVaultApp{
		conf:   conf,
		status: StartupPending,
		log:    zerolog.Nop(),
	}

	for _, o := range opts {
		o(a)
	}

	rootPath, err := storageRoot(conf)
	if err != nil {
		return nil, err
	}

	rootStore, err := store.NewFolderObjectStore(rootPath)
	if err != nil {
		return nil, err
	}

	a.vault, err = NewLocalVault(ctx, rootStore, VaultLogger(&a.log))
	if err != nil {
		return nil, err
	}
	if conf.Storage.MaxCachedItems > 0 {
		a.vault.Records().SetMaxCachedItems(conf.Storage.MaxCachedItems)
	}

	if a.client == nil {
		a.client, err = a.buildClient(ctx)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *HealthVaultApp) buildClient(ctx context.Context) (*client.Client, error) {
	appInfo := client.AppInfo{
		MasterAppID:  a.conf.App.MasterAppID,
		AppName:      a.conf.App.Name,
		InstanceName: a.conf.App.InstanceName,
		Country:      a.conf.App.Country,
		Language:     a.conf.App.Language,
	}
	if appInfo.InstanceName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = uuid.NewString()
		}
		appInfo.InstanceName = hostname
	}

	serviceInfo := serviceInfoFor(a.conf)

	transport, err := client.NewHTTPTransport(serviceInfo.ServiceURL,
		client.TransportLogger(&a.log),
		client.TransportWriteTimeout(a.conf.Service.WriteTimeout),
		client.TransportRetry(
			a.conf.Service.RetryOptions.Attempts,
			a.conf.Service.RetryOptions.Delay,
			a.conf.Service.RetryOptions.MaxJitter),
	)
	if err != nil {
		return nil, err
	}

	return client.NewClient(ctx, appInfo, serviceInfo,
		client.ClientTransport(transport),
		client.ClientSecrets(a.vault.AppStore()),
		client.ClientLogger(&a.log),
	)
}

func serviceInfoFor(conf *config.Bootstrap) client.ServiceInfo {
	var info client.ServiceInfo

	switch conf.Service.Environment {
	case config.EnvironmentUSProduction:
		info = client.ServiceInfoUSProduction()
	case config.EnvironmentUKProduction:
		info = client.ServiceInfoUKProduction()
	case config.EnvironmentUKPPE:
		info = client.ServiceInfoUKPPE()
	default:
		info = client.ServiceInfoUSPPE()
	}

	if conf.Service.ServiceURL != "" {
		info.ServiceURL = conf.Service.ServiceURL
	}
	if conf.Service.ShellURL != "" {
		info.ShellURL = conf.Service.ShellURL
	}

	return info
}

func storageRoot(conf *config.Bootstrap) (string, error) {
	if conf.Storage.Root != "" {
		return conf.Storage.Root, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", ErrGenericErrorWrap("resolving home directory", err)
	}

	return filepath.Join(home, defaultStorageFolder), nil
}

func (a *HealthVaultApp) Client() *client.Client {
	return a.client
}

func (a *HealthVaultApp) Vault() *LocalVault {
	return a.vault
}

func (a *HealthVaultApp) Status() StartupStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.status
}

func (a *HealthVaultApp) setStatus(status StartupStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.status = status
}

// UserInfo is the cached authorized user, nil before EnsureUserInfo.
func (a *HealthVaultApp) UserInfo() *UserInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.userInfo
}

// Start drives provisioning as far as it can go without the user. Pending
// means the user still has to authorize the app in the shell; the caller
// shows ShellAuthorizationURL and calls Start again later.
func (a *HealthVaultApp) Start(ctx context.Context) (StartupStatus, error) {
	a.setStatus(StartupPending)

	provStatus, err := a.client.EnsureProvisioned(ctx)
	if err != nil {
		if ctx.Err() != nil {
			a.setStatus(StartupCancelled)
			return StartupCancelled, err
		}

		a.setStatus(StartupFailed)

		return StartupFailed, err
	}

	if provStatus == client.ProvisionPending {
		a.log.Info().Str("url", a.client.ShellAuthorizationURL()).Msg("waiting for shell authorization")
		return StartupPending, nil
	}

	if a.conf.Storage.UseEncryption {
		if err := a.enableEncryption(ctx); err != nil {
			a.setStatus(StartupFailed)
			return StartupFailed, err
		}
	}

	a.mu.Lock()
	a.userInfo = LoadUserInfo(ctx, a.vault.AppStore())
	a.status = StartupSuccess
	a.mu.Unlock()

	a.log.Info().Dict("details", zerolog.Dict().
		Str("app", a.conf.App.Name).
		Bool("encrypted", a.conf.Storage.UseEncryption)).
		Msg("app started")

	return StartupSuccess, nil
}

// enableEncryption keys the record vault from the provisioned shared
// secret, so local data is unreadable without the instance identity.
func (a *HealthVaultApp) enableEncryption(ctx context.Context) error {
	info := a.client.State().ProvisioningInfo()
	if !info.IsValid() {
		return client.ErrNotProvisioned
	}

	secret, err := base64.StdEncoding.DecodeString(info.SharedSecret)
	if err != nil {
		// Secrets from non-platform provisioning flows may be raw strings.
		secret = []byte(info.SharedSecret)
	}

	return a.vault.EnableEncryption(ctx, secret)
}

// EnsureUserInfo returns the authorized user, asking the service when no
// local copy exists. The fetched copy is cached best effort.
func (a *HealthVaultApp) EnsureUserInfo(ctx context.Context) (*UserInfo, error) {
	if a.Status() != StartupSuccess {
		return nil, ErrNotStarted
	}

	if info := a.UserInfo(); info != nil {
		return info, nil
	}

	persons, err := a.client.GetAuthorizedPersons(ctx)
	if err != nil {
		return nil, err
	}
	if len(persons) == 0 {
		return nil, ErrNoAuthorizedPersons
	}

	info := NewUserInfo(persons[0])
	if err := info.Save(ctx, a.vault.AppStore()); err != nil {
		a.log.Warn().Err(err).Msg("caching user info failed")
	}

	a.mu.Lock()
	a.userInfo = info
	a.mu.Unlock()

	return info, nil
}

// RefreshUserInfo drops the cached user and refetches.
func (a *HealthVaultApp) RefreshUserInfo(ctx context.Context) (*UserInfo, error) {
	a.mu.Lock()
	a.userInfo = nil
	a.mu.Unlock()

	if err := RemoveUserInfo(ctx, a.vault.AppStore()); err != nil {
		a.log.Warn().Err(err).Msg("removing cached user info failed")
	}

	return a.EnsureUserInfo(ctx)
}

// RecordStoreFor opens the local container for one of the user's records,
// wired to the remote record through the client.
func (a *HealthVaultApp) RecordStoreFor(ctx context.Context, record types.RecordInfo) (*store.LocalRecordStore, error) {
	if a.Status() != StartupSuccess {
		return nil, ErrNotStarted
	}

	remote, err := client.NewRemoteRecord(a.client, record)
	if err != nil {
		return nil, err
	}

	return a.vault.RecordStore(ctx, remote)
}

// Reset wipes local record data and forgets provisioning state.
func (a *HealthVaultApp) Reset(ctx context.Context) error {
	if err := a.vault.Reset(ctx); err != nil {
		return err
	}

	return a.client.ResetState(ctx)
}
