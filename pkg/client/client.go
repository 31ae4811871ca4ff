/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/store"
)

// AppInfo describes the application talking to the platform.
type AppInfo struct {
	MasterAppID  string
	AppName      string
	InstanceName string
	Country      string
	Language     string
}

func (a *AppInfo) Validate() error {
	if a == nil || a.MasterAppID == "" {
		return ErrGenericError("master app id is required")
	}

	return nil
}

// ServiceInfo names the platform and shell endpoints.
type ServiceInfo struct {
	ServiceURL string
	ShellURL   string
}

func (s *ServiceInfo) Validate() error {
	if s == nil || s.ServiceURL == "" {
		return ErrGenericError("service url is required")
	}

	return nil
}

func ServiceInfoUSProduction() ServiceInfo {
	return ServiceInfo{
		ServiceURL: "https://platform.healthvault.com/platform/wildcat.ashx",
		ShellURL:   "https://account.healthvault.com",
	}
}

func ServiceInfoUSPPE() ServiceInfo {
	return ServiceInfo{
		ServiceURL: "https://platform.healthvault-ppe.com/platform/wildcat.ashx",
		ShellURL:   "https://account.healthvault-ppe.com",
	}
}

func ServiceInfoUKProduction() ServiceInfo {
	return ServiceInfo{
		ServiceURL: "https://platform.healthvault.co.uk/platform/wildcat.ashx",
		ShellURL:   "https://account.healthvault.co.uk",
	}
}

func ServiceInfoUKPPE() ServiceInfo {
	return ServiceInfo{
		ServiceURL: "https://platform.healthvault-ppe.co.uk/platform/wildcat.ashx",
		ShellURL:   "https://account.healthvault-ppe.co.uk",
	}
}

// call is one service method invocation before envelope assembly.
type call struct {
	method        string
	methodVersion int
	recordID      string
	personID      string
	body          string
	anonymous     bool
}

// Client speaks the platform protocol: envelope assembly, header signing,
// session refresh, provisioning state. Safe for concurrent use.
type Client struct {
	appInfo     AppInfo
	serviceInfo ServiceInfo
	transport   Transport
	state       *ClientState
	secrets     *store.LocalStore
	log         zerolog.Logger
}

type ClientOption func(c *Client)

func ClientTransport(transport Transport) ClientOption {
	return func(c *Client) { c.transport = transport }
}

// ClientSecrets sets where provisioning and session state persist. Without
// one the state lives only in memory.
func ClientSecrets(secrets *store.LocalStore) ClientOption {
	return func(c *Client) { c.secrets = secrets }
}

func ClientLogger(log *zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = *log }
}

func NewClient(ctx context.Context, appInfo AppInfo, serviceInfo ServiceInfo, opts ...ClientOption) (*Client, error) {
	if err := appInfo.Validate(); err != nil {
		return nil, err
	}
	if err := serviceInfo.Validate(); err != nil {
		return nil, err
	}

	if appInfo.Language == "" {
		appInfo.Language = "en"
	}
	if appInfo.Country == "" {
		appInfo.Country = "US"
	}

	c := &Client{
		appInfo:     appInfo,
		serviceInfo: serviceInfo,
		state:       NewClientState(),
		log:         zerolog.Nop(),
	}

	for _, o := range opts {
		o(c)
	}

	if c.transport == nil {
		transport, err := NewHTTPTransport(serviceInfo.ServiceURL, TransportLogger(&c.log))
		if err != nil {
			return nil, err
		}
		c.transport = transport
	}

	if c.secrets != nil {
		c.state.Load(ctx, c.secrets)
	}

	return c, nil
}

func (c *Client) AppInfo() AppInfo {
	return c.appInfo
}

func (c *Client) ServiceInfo() ServiceInfo {
	return c.serviceInfo
}

func (c *Client) State() *ClientState {
	return c.state
}

func (c *Client) IsProvisioned() bool {
	return c.state.IsAppProvisioned()
}

// ShellAuthorizationURL is where the user authorizes this app instance when
// the platform does not know it yet.
func (c *Client) ShellAuthorizationURL() string {
	info := c.state.ProvisioningInfo()
	if info == nil || info.AppCreationToken == "" {
		return ""
	}

	return fmt.Sprintf("%s/redirect.aspx?target=CREATEAPPLICATION&targetqs=%%3Fappid%%3D%s%%26appCreationToken%%3D%s",
		c.serviceInfo.ShellURL, c.appInfo.MasterAppID, info.AppCreationToken)
}

// execute runs one method call against the platform. Expired credentials
// get one transparent refresh and resend.
func (c *Client) execute(ctx context.Context, call *call) (*responseEnvelope, error) {
	const maxAttempts = 2

	for attempt := 1; ; attempt++ {
		var credentials *SessionCredential
		if !call.anonymous {
			var err error
			credentials, err = c.EnsureCredentials(ctx)
			if err != nil {
				return nil, err
			}
		}

		response, err := c.send(ctx, call, credentials)
		if err != nil {
			return nil, err
		}

		if response.Status.isSuccess() {
			return response, nil
		}

		retryable := response.Status.isCredentialsExpired() || response.Status.isServerFailure()
		if !retryable || attempt == maxAttempts {
			return nil, response.Status.asError()
		}

		if response.Status.isCredentialsExpired() {
			if err := c.RefreshSessionToken(ctx); err != nil {
				return nil, err
			}
		}

		c.log.Debug().Dict("details", zerolog.Dict().
			Str("method", call.method).
			Int("status", response.Status.Code)).
			Msg("resending request")
	}
}

func (c *Client) send(ctx context.Context, call *call, credentials *SessionCredential) (*responseEnvelope, error) {
	envelope := newRequest(call.method, call.methodVersion, call.body)
	envelope.Header.Language = c.appInfo.Language
	envelope.Header.Country = c.appInfo.Country
	envelope.Header.RecordID = call.recordID
	envelope.Header.PersonID = call.personID

	if call.anonymous {
		envelope.Header.setAppID(c.appInfo.MasterAppID)
	} else {
		if credentials == nil {
			return nil, ErrNoCredentials
		}
		envelope.Header.setSession(credentials.Token, call.personID)
	}

	envelope.hashBody()

	if !call.anonymous {
		key, err := credentials.SharedSecretBytes()
		if err != nil {
			return nil, err
		}

		if err := envelope.sign(key); err != nil {
			return nil, err
		}
	}

	if err := envelope.validate(); err != nil {
		return nil, err
	}

	body, err := envelope.marshal()
	if err != nil {
		return nil, err
	}

	data, err := c.transport.Send(ctx, body)
	if err != nil {
		return nil, err
	}

	return parseResponse(data)
}

// EnsureCredentials returns a usable session credential, creating one when
// none is held.
func (c *Client) EnsureCredentials(ctx context.Context) (*SessionCredential, error) {
	if !c.state.HasCredentials() {
		if err := c.RefreshSessionToken(ctx); err != nil {
			return nil, err
		}
	}

	return c.state.Credentials(), nil
}

// RefreshSessionToken creates a fresh platform session from the instance's
// provisioning secret and persists it.
func (c *Client) RefreshSessionToken(ctx context.Context) error {
	credential, err := c.getSessionToken(ctx)
	if err != nil {
		return err
	}

	c.state.SetCredentials(credential)
	c.saveState(ctx)

	return nil
}

// UpdateProvisioningInfo asks the platform for a fresh app instance
// identity and persists it.
func (c *Client) UpdateProvisioningInfo(ctx context.Context) error {
	info, err := c.getProvisioningInfo(ctx)
	if err != nil {
		return err
	}

	c.state.SetProvisioningInfo(info)
	c.saveState(ctx)

	return nil
}

// IsAppAuthorizedOnServer probes whether the platform accepts this instance
// by creating a session. Unknown or unauthorized instances answer false.
func (c *Client) IsAppAuthorizedOnServer(ctx context.Context) (bool, error) {
	err := c.RefreshSessionToken(ctx)
	if err != nil {
		if IsServerStatus(err, statusInvalidApp) || IsServerStatus(err, statusAccessDenied) {
			return false, nil
		}

		return false, err
	}

	return c.state.HasCredentials(), nil
}

// ProvisionStatus is the outcome of EnsureProvisioned.
type ProvisionStatus int

const (
	// ProvisionSuccess means the instance holds a live session.
	ProvisionSuccess ProvisionStatus = iota

	// ProvisionPending means the instance exists but the user still has to
	// authorize it in the shell; see ShellAuthorizationURL.
	ProvisionPending

	// ProvisionFailed means provisioning cannot proceed.
	ProvisionFailed
)

// EnsureProvisioned walks the provisioning state machine as far as it can
// without user interaction: obtain an instance identity, then try to open a
// session. When the platform does not recognize the instance yet, the user
// must visit the shell authorization URL and the caller retries later.
func (c *Client) EnsureProvisioned(ctx context.Context) (ProvisionStatus, error) {
	if c.state.IsAppProvisioned() {
		return ProvisionSuccess, nil
	}

	if !c.state.HasProvisioningInfo() {
		if err := c.UpdateProvisioningInfo(ctx); err != nil {
			return ProvisionFailed, err
		}
	}

	authorized, err := c.IsAppAuthorizedOnServer(ctx)
	if err != nil {
		return ProvisionFailed, err
	}
	if !authorized {
		return ProvisionPending, nil
	}

	if !c.state.HasCredentials() {
		if err := c.RefreshSessionToken(ctx); err != nil {
			return ProvisionFailed, err
		}
	}

	return ProvisionSuccess, nil
}

// ResetState forgets provisioning and session state, locally and in the
// secret store.
func (c *Client) ResetState(ctx context.Context) error {
	if c.secrets == nil {
		c.state.SetProvisioningInfo(nil)
		c.state.SetCredentials(nil)

		return nil
	}

	return c.state.Reset(ctx, c.secrets)
}

// saveState persists best effort: a failed save costs a re-provision later,
// not the current call.
func (c *Client) saveState(ctx context.Context) {
	if c.secrets == nil {
		return
	}

	if err := c.state.Save(ctx, c.secrets); err != nil {
		c.log.Warn().Err(err).Msg("saving client state failed")
	}
}
