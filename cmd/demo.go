/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"sync"
	"time"

	config "github.com/microsoft/healthvault-client-go/pkg/config"
	"github.com/microsoft/healthvault-client-go/pkg/app"
	"github.com/microsoft/healthvault-client-go/pkg/client"
	"github.com/microsoft/healthvault-client-go/pkg/logger"
	"github.com/microsoft/healthvault-client-go/pkg/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// weightType is the platform's weight measurement thing type.
const (
	weightTypeID   = "3d34d87e-7fc1-4153-800f-f56592cb0d17"
	weightTypeName = "Weight Measurement"

	demoSeedItems = 40
)

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Exercise the SDK end to end against an in-process fake platform",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd)
	},
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().AddFlagSet(config.GetAppFlags())
	demoCmd.Flags().AddFlagSet(config.GetServiceFlags())
	demoCmd.Flags().AddFlagSet(config.GetStorageFlags())
	demoCmd.Flags().AddFlagSet(config.GetLoggingFlags())
}

func initialize(cmd *cobra.Command) error {
	config.BindFlags(cmd, viper.GetViper())
	return nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conf := config.Get()

	log, err := logger.NewhvLog(logger.Config(conf))
	if err != nil {
		return fmt.Errorf("error starting zerolog, %w", err)
	}

	if conf.Storage.Root == "" {
		root, err := os.MkdirTemp("", "healthvault-demo")
		if err != nil {
			return fmt.Errorf("error creating demo storage, %w", err)
		}
		defer os.RemoveAll(root)
		conf.Storage.Root = root
	}
	if conf.App.MasterAppID == "" {
		conf.App.MasterAppID = uuid.NewString()
	}

	platform := newFakePlatform(&log)

	hv, err := client.NewClient(ctx,
		client.AppInfo{MasterAppID: conf.App.MasterAppID, AppName: "sdk-demo", InstanceName: "sdk-demo"},
		client.ServiceInfo{ServiceURL: "https://demo.invalid/platform", ShellURL: "https://demo.invalid/shell"},
		client.ClientTransport(platform),
		client.ClientLogger(&log),
	)
	if err != nil {
		return fmt.Errorf("error creating client, %w", err)
	}

	a, err := app.New(ctx, conf, app.Client(hv), app.Logger(&log))
	if err != nil {
		return fmt.Errorf("error creating app, %w", err)
	}

	status, err := a.Start(ctx)
	if err != nil {
		return fmt.Errorf("error starting app, %w", err)
	}
	if status != app.StartupSuccess {
		return fmt.Errorf("unexpected startup status %s", status)
	}

	user, err := a.EnsureUserInfo(ctx)
	if err != nil {
		return fmt.Errorf("error fetching user info, %w", err)
	}

	record := user.SelectedRecord()
	log.Info().Dict("details", zerolog.Dict().
		Str("person", user.Person.Name).
		Str("record", record.ID)).
		Msg("authorized")

	recordStore, err := a.RecordStoreFor(ctx, *record)
	if err != nil {
		return fmt.Errorf("error opening record store, %w", err)
	}

	view, err := recordStore.CreateView("weights", types.QueryForType("weights", weightTypeID))
	if err != nil {
		return fmt.Errorf("error creating view, %w", err)
	}

	if err := view.Synchronize(ctx); err != nil {
		return fmt.Errorf("error synchronizing view, %w", err)
	}
	log.Info().Int("keys", view.KeyCount()).Msg("view synchronized")

	// First pass pulls everything down; the local store serves it afterwards.
	items, err := view.EnsureItemsAvailableAndGet(ctx, 0, view.KeyCount())
	if err != nil {
		return fmt.Errorf("error materializing view, %w", err)
	}

	newest := items
	if len(newest) > 3 {
		newest = newest[:3]
	}
	for i, item := range newest {
		log.Info().Dict("details", zerolog.Dict().
			Int("index", i).
			Str("id", item.Key.ID).
			Str("kg", item.Data.Field("kg"))).
			Msg("newest weights")
	}

	// Concurrent index reads all land in the warm local store.
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < view.KeyCount(); i++ {
				if _, err := view.GetItem(gctx, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("error reading view concurrently, %w", err)
	}

	if err := recordStore.PutView(ctx, view); err != nil {
		return fmt.Errorf("error persisting view, %w", err)
	}

	reloaded, err := recordStore.GetView(ctx, "weights")
	if err != nil || reloaded == nil {
		return fmt.Errorf("error reloading view, %w", err)
	}

	log.Info().Dict("details", zerolog.Dict().
		Int("keys", reloaded.KeyCount()).
		Int("platformCalls", platform.RequestCount())).
		Msg("demo complete")

	return nil
}

// fakePlatform implements client.Transport with an in-memory record, so the
// demo runs with no network and no real credentials.
type fakePlatform struct {
	mu       sync.Mutex
	log      *zerolog.Logger
	secret   string
	token    string
	personID string
	recordID string
	order    []string
	things   map[string]fakeThing
	requests int
}

type fakeThing struct {
	id      string
	version string
	effDate time.Time
	payload string
}

func newFakePlatform(log *zerolog.Logger) *fakePlatform {
	p := &fakePlatform{
		log:      log,
		secret:   base64.StdEncoding.EncodeToString([]byte(uuid.NewString())),
		token:    uuid.NewString(),
		personID: uuid.NewString(),
		recordID: uuid.NewString(),
		things:   make(map[string]fakeThing),
	}

	base := time.Now().UTC().Truncate(time.Hour)
	for i := 0; i < demoSeedItems; i++ {
		id := uuid.NewString()
		p.order = append(p.order, id)
		p.things[id] = fakeThing{
			id:      id,
			version: uuid.NewString(),
			effDate: base.Add(-time.Duration(i) * 24 * time.Hour),
			payload: fmt.Sprintf(`{"kg": %.1f, "source": "demo-scale"}`, 70+float64(i%10)*0.4),
		}
	}

	return p
}

func (p *fakePlatform) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.requests
}

type fakeRequestXML struct {
	XMLName xml.Name `xml:"request"`
	Header  struct {
		Method  string `xml:"method"`
		Session struct {
			Token string `xml:"auth-token"`
		} `xml:"auth-session"`
	} `xml:"header"`
	Info struct {
		Body string `xml:",innerxml"`
	} `xml:"info"`
}

type fakeGroupXML struct {
	XMLName xml.Name `xml:"group"`
	Max     int      `xml:"max,attr"`
	IDs     []struct {
		Value   string `xml:",chardata"`
		Version string `xml:"version-stamp,attr"`
	} `xml:"id"`
	Filters []struct {
		TypeIDs []string `xml:"type-id"`
	} `xml:"filter"`
}

func (p *fakePlatform) Send(ctx context.Context, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.requests++
	p.mu.Unlock()

	var request fakeRequestXML
	if err := xml.Unmarshal(body, &request); err != nil {
		return nil, err
	}

	switch request.Header.Method {
	case "NewApplicationCreationInfo":
		return p.respond(fmt.Sprintf(
			"<app-id>%s</app-id><shared-secret>%s</shared-secret><app-token>%s</app-token>",
			uuid.NewString(), p.secret, uuid.NewString())), nil

	case "CreateAuthenticatedSessionToken":
		return p.respond(fmt.Sprintf(
			"<token>%s</token><shared-secret>%s</shared-secret>",
			p.token, p.secret)), nil

	case "GetAuthorizedPeople":
		if request.Header.Session.Token != p.token {
			return p.fail(8, "access denied"), nil
		}

		return p.respond(fmt.Sprintf(
			`<response-results><person-info><person-id>%s</person-id><name>Demo User</name>`+
				`<record id=%q display-name="Demo User">Demo User</record>`+
				`<selected-record-id>%s</selected-record-id></person-info></response-results>`,
			p.personID, p.recordID, p.recordID)), nil

	case "GetThings":
		if request.Header.Session.Token != p.token {
			return p.fail(8, "access denied"), nil
		}

		return p.getThings(request.Info.Body)

	default:
		return p.fail(1, fmt.Sprintf("unknown method %s", request.Header.Method)), nil
	}
}

func (p *fakePlatform) getThings(body string) ([]byte, error) {
	var group fakeGroupXML
	if err := xml.Unmarshal([]byte(body), &group); err != nil {
		return nil, err
	}

	var out string
	if len(group.IDs) > 0 {
		// Addressed fetch: full things for the requested keys.
		for _, id := range group.IDs {
			thing, ok := p.things[id.Value]
			if !ok {
				continue
			}

			out += p.renderThing(thing, true)
		}
	} else {
		// Filtered listing: keys and dates only, newest first.
		max := group.Max
		if max <= 0 || max > len(p.order) {
			max = len(p.order)
		}

		for _, id := range p.order[:max] {
			out += p.renderThing(p.things[id], false)
		}
	}

	return p.respond("<group>" + out + "</group>"), nil
}

func (p *fakePlatform) renderThing(t fakeThing, withData bool) string {
	out := fmt.Sprintf(
		"<thing><thing-id version-stamp=%q>%s</thing-id><type-id name=%q>%s</type-id><eff-date>%s</eff-date>",
		t.version, t.id, weightTypeName, weightTypeID, t.effDate.Format(time.RFC3339))

	if withData {
		var escaped bytes.Buffer
		_ = xml.EscapeText(&escaped, []byte(t.payload))
		out += "<data-xml>" + escaped.String() + "</data-xml>"
	}

	return out + "</thing>"
}

func (p *fakePlatform) respond(info string) []byte {
	return []byte("<response><status><code>0</code></status><info>" + info + "</info></response>")
}

func (p *fakePlatform) fail(code int, message string) []byte {
	return []byte(fmt.Sprintf(
		"<response><status><code>%d</code><error><message>%s</message></error></status><info></info></response>",
		code, message))
}
