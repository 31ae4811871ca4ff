/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"context"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	defaultWriteTimeout  = 10 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 250 * time.Millisecond
	defaultRetryJitter   = 100 * time.Millisecond
)

// Transport sends one serialized request envelope and returns the raw
// response body. Implementations retry transient transport failures; server
// status handling stays with the caller.
type Transport interface {
	Send(ctx context.Context, body []byte) ([]byte, error)
}

// HTTPTransport posts envelopes to the platform endpoint over fasthttp with
// backoff retries.
type HTTPTransport struct {
	url          string
	client       *fasthttp.Client
	retryOptions []retry.Option
	log          zerolog.Logger
}

type TransportOption func(t *HTTPTransport)

func TransportLogger(log *zerolog.Logger) TransportOption {
	return func(t *HTTPTransport) { t.log = *log }
}

func TransportRetry(attempts uint, delay, maxJitter time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.retryOptions = t.buildRetryOptions(attempts, delay, maxJitter)
	}
}

func TransportWriteTimeout(timeout time.Duration) TransportOption {
	return func(t *HTTPTransport) { t.client.WriteTimeout = timeout }
}

func NewHTTPTransport(url string, opts ...TransportOption) (*HTTPTransport, error) {
	if url == "" {
		return nil, ErrGenericError("transport url is required")
	}

	t := &HTTPTransport{
		url:    url,
		client: &fasthttp.Client{WriteTimeout: defaultWriteTimeout},
		log:    zerolog.Nop(),
	}
	t.retryOptions = t.buildRetryOptions(defaultRetryAttempts, defaultRetryDelay, defaultRetryJitter)

	for _, o := range opts {
		o(t)
	}

	return t, nil
}

func (t *HTTPTransport) buildRetryOptions(attempts uint, delay, maxJitter time.Duration) []retry.Option {
	return []retry.Option{
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(delay), // Initial Delay
		retry.MaxJitter(maxJitter),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.log.Warn().Err(err).Dict("details", zerolog.Dict().
				Uint("attempt", n).
				Str("endpoint", t.url)).
				Msg("retrying platform request")
		}),
	}
}

func (t *HTTPTransport) Send(ctx context.Context, body []byte) ([]byte, error) {
	request := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(request)

	request.Header.SetMethod(fasthttp.MethodPost)
	request.Header.Set("Content-Type", "text/xml; charset=utf-8")
	request.Header.Set("User-Agent", "github.com/microsoft/healthvault-client-go")
	request.SetRequestURI(t.url)
	request.SetBody(body)

	response := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(response)

	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := t.client.Do(request, response); err != nil {
				return ErrGenericErrorWrap("executing request", err)
			}

			return nil
		},
		t.retryOptions...,
	)
	if err != nil {
		t.log.Err(err).Dict("details", zerolog.Dict().Str("endpoint", t.url)).Msg("platform unreachable")
		return nil, ErrGenericErrorWrap("executing retries", err)
	}

	if response.StatusCode() != fasthttp.StatusOK {
		return nil, ErrGenericError(fmt.Sprintf("platform returned http %d", response.StatusCode()))
	}

	// The response buffer goes back to the pool; hand the caller a copy.
	result := make([]byte, len(response.Body()))
	copy(result, response.Body())

	return result, nil
}
