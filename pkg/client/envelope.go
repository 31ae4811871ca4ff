/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"time"
)

const (
	protocolVersion   = "Go V1.0"
	defaultRequestTTL = 1800 // seconds

	hmacAlgorithm = "HMACSHA256"
	hashAlgorithm = "SHA256"
)

// Server status codes the client reacts to. Everything else surfaces as a
// plain ServerError.
const (
	statusOK                 = 0
	statusFailed             = 1
	statusInvalidApp         = 6
	statusCredentialsExpired = 7
	statusAccessDenied       = 8
)

// ServerError is a non-success status returned by the service.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server status %d : %s", e.Code, e.Message)
}

// IsServerStatus reports whether err is a ServerError with the given code.
func IsServerStatus(err error, code int) bool {
	serverErr, ok := err.(*ServerError)

	return ok && serverErr.Code == code
}

type hashData struct {
	Algorithm string `xml:"algName,attr"`
	Value     string `xml:",chardata"`
}

type authSession struct {
	Token           string `xml:"auth-token"`
	OfflinePersonID string `xml:"offline-person-id,omitempty"`
}

// requestHeader is the signed portion of a request. A request carries either
// an app ID (anonymous calls) or an auth session, never both.
type requestHeader struct {
	XMLName       xml.Name     `xml:"header"`
	Method        string       `xml:"method"`
	MethodVersion int          `xml:"method-version"`
	PersonID      string       `xml:"target-person-id,omitempty"`
	RecordID      string       `xml:"record-id,omitempty"`
	AppID         string       `xml:"app-id,omitempty"`
	Session       *authSession `xml:"auth-session,omitempty"`
	Language      string       `xml:"language,omitempty"`
	Country       string       `xml:"country,omitempty"`
	Timestamp     string       `xml:"msg-time"`
	TTL           int          `xml:"msg-ttl"`
	Version       string       `xml:"version"`
	BodyHash      *hashData    `xml:"info-hash>hash-data"`
}

func (h *requestHeader) setAppID(appID string) {
	h.AppID = appID
	h.Session = nil
}

func (h *requestHeader) setSession(token, offlinePersonID string) {
	h.Session = &authSession{Token: token, OfflinePersonID: offlinePersonID}
	h.AppID = ""
}

type requestAuth struct {
	HMAC hashData `xml:"hmac-data"`
}

type requestInfo struct {
	Body string `xml:",innerxml"`
}

// requestEnvelope is one wire request: optional auth, signed header, body.
type requestEnvelope struct {
	XMLName xml.Name      `xml:"request"`
	Auth    *requestAuth  `xml:"auth,omitempty"`
	Header  requestHeader `xml:"header"`
	Info    requestInfo   `xml:"info"`
}

func newRequest(method string, methodVersion int, body string) *requestEnvelope {
	return &requestEnvelope{
		Header: requestHeader{
			Method:        method,
			MethodVersion: methodVersion,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			TTL:           defaultRequestTTL,
			Version:       protocolVersion,
		},
		Info: requestInfo{Body: body},
	}
}

func (r *requestEnvelope) validate() error {
	if r.Header.Method == "" {
		return ErrGenericError("request method is required")
	}
	if r.Header.BodyHash == nil {
		return ErrGenericError("request body hash is required")
	}

	return nil
}

// hashBody stamps the body digest into the header. Runs before sign, since
// the digest is part of the signed header.
func (r *requestEnvelope) hashBody() {
	sum := sha256.Sum256([]byte(r.Info.Body))
	r.Header.BodyHash = &hashData{
		Algorithm: hashAlgorithm,
		Value:     base64.StdEncoding.EncodeToString(sum[:]),
	}
}

// sign computes the auth HMAC over the serialized header using the session
// shared secret.
func (r *requestEnvelope) sign(sharedSecret []byte) error {
	headerXML, err := xml.Marshal(&r.Header)
	if err != nil {
		return ErrGenericErrorWrap("serializing request header", err)
	}

	r.Auth = &requestAuth{HMAC: hmacData(sharedSecret, headerXML)}

	return nil
}

func (r *requestEnvelope) marshal() ([]byte, error) {
	data, err := xml.Marshal(r)
	if err != nil {
		return nil, ErrGenericErrorWrap("serializing request", err)
	}

	return data, nil
}

func hmacData(secret, message []byte) hashData {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)

	return hashData{
		Algorithm: hmacAlgorithm,
		Value:     base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}
}

type responseStatus struct {
	Code    int    `xml:"code"`
	Message string `xml:"error>message"`
}

func (s *responseStatus) isSuccess() bool {
	return s.Code == statusOK
}

func (s *responseStatus) isCredentialsExpired() bool {
	return s.Code == statusCredentialsExpired
}

func (s *responseStatus) isServerFailure() bool {
	return s.Code == statusFailed
}

func (s *responseStatus) asError() error {
	return &ServerError{Code: s.Code, Message: s.Message}
}

type responseInfo struct {
	Body string `xml:",innerxml"`
}

// responseEnvelope is one wire response: status plus the method result body.
type responseEnvelope struct {
	XMLName xml.Name       `xml:"response"`
	Status  responseStatus `xml:"status"`
	Info    responseInfo   `xml:"info"`
}

func parseResponse(data []byte) (*responseEnvelope, error) {
	var response responseEnvelope
	if err := xml.Unmarshal(data, &response); err != nil {
		return nil, ErrGenericErrorWrap("parsing response", err)
	}

	return &response, nil
}
