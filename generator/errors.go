package generator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("generator: invalid request")
	ErrConfiguration     = errors.New("generator: configuration missing")
	ErrRemoteService     = errors.New("generator: remote service failed")
	ErrMalformedResponse = errors.New("generator: malformed model response")
	ErrNoMediaProduced   = errors.New("generator: no media produced")
	ErrMediaDownload     = errors.New("generator: media download failed")
	ErrTimeout           = errors.New("generator: wait budget exceeded")
	ErrPostNotFound      = errors.New("generator: post not found")
	ErrMediaNotFound     = errors.New("generator: media placeholder not found")
	ErrEditPending       = errors.New("generator: another variant has unsynced edits")
	ErrSyncInProgress    = errors.New("generator: sync already running")
	ErrAPIKeyMissing     = fmt.Errorf("%w: api key not set", ErrConfiguration)
)

// ValidationError describes a request-shape violation found before any
// remote call.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	var parts []string
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ": "))
}

func (e *ValidationError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// RemoteServiceError wraps a transport failure from any remote call.
type RemoteServiceError struct {
	Op  string
	Err error
}

func (e *RemoteServiceError) Error() string {
	if e == nil || e.Err == nil {
		return ErrRemoteService.Error()
	}
	return fmt.Sprintf("%s: %s: %v", ErrRemoteService.Error(), e.Op, e.Err)
}

func (e *RemoteServiceError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrRemoteService}
	}
	return []error{ErrRemoteService, e.Err}
}

// Remote wraps err as a RemoteServiceError unless it already carries a
// classified kind (configuration, malformed, media).
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrConfiguration, ErrRemoteService, ErrNoMediaProduced, ErrMediaDownload, ErrTimeout} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return &RemoteServiceError{Op: op, Err: err}
}

// MalformedResponseError reports a model reply that breaks the document
// contract.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return ErrMalformedResponse.Error()
	}
	msg := ErrMalformedResponse.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// MediaDownloadError reports a failed video binary fetch.
type MediaDownloadError struct {
	StatusCode int
	Err        error
}

func (e *MediaDownloadError) Error() string {
	if e == nil {
		return ErrMediaDownload.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", ErrMediaDownload.Error(), e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrMediaDownload.Error(), e.Err)
	}
	return ErrMediaDownload.Error()
}

func (e *MediaDownloadError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrMediaDownload}
	}
	return []error{ErrMediaDownload, e.Err}
}
