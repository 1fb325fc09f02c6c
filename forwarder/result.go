package forwarder

import (
	"errors"
	"fmt"
)

// Messages placed in Result.Message.
const (
	MessageSuccess      = "evaluation data sent to the visualization service"
	messageStatusFormat = "failed to send data: HTTP %d"
	messageErrorFormat  = "error processing evaluation data: %v"
)

// Result is the normalised outcome of one forward.
// Success, Message and Details are always populated; Kind and StatusCode
// tag failures with their cause.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Details    any    `json:"details"`
	Kind       Kind   `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Envelope wraps Result under the "result" key returned to callers.
type Envelope struct {
	Result Result `json:"result"`
}

// Success builds the envelope for a 200 response decoded into details.
// A JSON null body gives nil details; the key is still present.
func Success(details any) Envelope {
	return Envelope{Result: Result{
		Success: true,
		Message: MessageSuccess,
		Details: details,
	}}
}

// Failure converts err into a failure envelope. Status failures carry the raw
// body text as details; decode failures carry the raw body text as well;
// every other failure carries the error string.
func Failure(err error) Envelope {
	var fe *Error
	if !errors.As(err, &fe) {
		fe = &Error{Kind: KindInternal, Err: err}
	}

	res := Result{
		Success:    false,
		Kind:       fe.Kind,
		StatusCode: fe.StatusCode,
	}

	switch fe.Kind {
	case KindStatus:
		res.Message = fmt.Sprintf(messageStatusFormat, fe.StatusCode)
		res.Details = string(fe.Body)
	case KindDecode:
		res.Message = fmt.Sprintf(messageErrorFormat, fe)
		res.Details = string(fe.Body)
	default:
		res.Message = fmt.Sprintf(messageErrorFormat, fe)
		res.Details = fe.Error()
	}

	return Envelope{Result: res}
}

// Map returns the envelope as nested maps, for callers that exchange
// untyped mappings (RPC plugins, workflow engines).
func (e Envelope) Map() map[string]any {
	res := map[string]any{
		"success": e.Result.Success,
		"message": e.Result.Message,
		"details": e.Result.Details,
	}
	if e.Result.Kind != "" {
		res["kind"] = string(e.Result.Kind)
	}
	if e.Result.StatusCode != 0 {
		res["status_code"] = e.Result.StatusCode
	}
	return map[string]any{"result": res}
}
