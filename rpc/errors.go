package rpc

import (
	"context"
	"errors"
	"net/http"

	"scavenger/core"
	"scavenger/core/types"
	nativecommon "scavenger/native/common"
	"scavenger/native/custody"
)

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

func serverError(message string, err error) *RPCError {
	rpcErr := &RPCError{Code: codeServerError, Message: message, status: http.StatusInternalServerError}
	if err != nil {
		rpcErr.Data = err.Error()
	}
	return rpcErr
}

// callError maps runtime and engine failures onto JSON-RPC errors. Engine
// failures carry their kind in data.
func callError(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &RPCError{Code: codeServerError, Message: "request cancelled", Data: err.Error(), status: http.StatusServiceUnavailable}
	case errors.Is(err, core.ErrInvalidNonce):
		return &RPCError{Code: codeInvalidNonce, Message: "invalid nonce", Data: err.Error(), status: http.StatusConflict}
	case errors.Is(err, core.ErrChainIDMismatch), errors.Is(err, core.ErrInvalidParams),
		errors.Is(err, types.ErrMissingSignature), errors.Is(err, types.ErrMissingMethod):
		return invalidParams(err.Error(), nil)
	case errors.Is(err, core.ErrUnknownMethod):
		return &RPCError{Code: codeMethodNotFound, Message: err.Error(), status: http.StatusNotFound}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return &RPCError{Code: codeModulePaused, Message: "module paused", Data: err.Error(), status: http.StatusServiceUnavailable}
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded), errors.Is(err, nativecommon.ErrQuotaWeightExceeded):
		return &RPCError{Code: codeRateLimited, Message: "quota exceeded", Data: err.Error(), status: http.StatusTooManyRequests}
	}
	kind := custody.ErrorKind(err)
	if kind == "Internal" {
		return serverError("internal error", err)
	}
	status := http.StatusBadRequest
	switch kind {
	case "NotFound":
		status = http.StatusNotFound
	case "Unauthorized":
		status = http.StatusForbidden
	}
	return &RPCError{
		Code:    codeCustodyError,
		Message: err.Error(),
		Data:    map[string]string{"kind": kind},
		status:  status,
	}
}
