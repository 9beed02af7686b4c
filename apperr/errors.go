// Package apperr holds the structured error type shared by the wallet and contract layers.
// Callers facing users read UserMessage; Message is for logs.
package apperr

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("apperr")

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Code string

const (
	CodeWalletNotConnected     Code = "WALLET_NOT_CONNECTED"
	CodeWalletConnectionFailed Code = "WALLET_CONNECTION_FAILED"
	CodeWalletDisconnectFailed Code = "WALLET_DISCONNECT_FAILED"
	CodeWalletNetworkError     Code = "WALLET_NETWORK_ERROR"
	CodeWalletUserCancelled    Code = "WALLET_USER_CANCELLED"
	CodeWalletNotSignedIn      Code = "WALLET_NOT_SIGNED_IN"
	CodeWalletBusy             Code = "WALLET_BUSY"
	CodeWalletAborted          Code = "WALLET_CONNECT_ABORTED"
	CodeProviderUnavailable    Code = "WALLET_PROVIDER_UNAVAILABLE"

	CodeContractNotInitialized Code = "CONTRACT_NOT_INITIALIZED"
	CodeContractCallFailed     Code = "CONTRACT_CALL_FAILED"

	CodeInvalidInput Code = "INVALID_INPUT"
	CodeUnknown      Code = "UNKNOWN_ERROR"
)

type AppError struct {
	Code        Code                   `json:"code"`
	Status      int                    `json:"status,omitempty"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage"`
	Level       Level                  `json:"level"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`

	cause error
}

func New(code Code, message, userMessage string, level Level) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		UserMessage: userMessage,
		Level:       level,
		Timestamp:   time.Now(),
	}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any AppError with the same code, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy carrying cause. The receiver is left untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := e.clone()
	cp.cause = cause
	return cp
}

// WithContext returns a copy with key set in its context map.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	cp := e.clone()
	cp.Context[key] = value
	return cp
}

func (e *AppError) clone() *AppError {
	cp := *e
	cp.Timestamp = time.Now()
	cp.Context = make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	return &cp
}

var (
	ErrNotConnected = New(CodeWalletNotConnected, "no wallet connected",
		"Please connect your wallet first.", LevelWarn)
	ErrConnectionFailed = New(CodeWalletConnectionFailed, "wallet connection failed",
		"We could not connect to your wallet. Please try again.", LevelError)
	ErrDisconnectFailed = New(CodeWalletDisconnectFailed, "wallet disconnect failed",
		"Your wallet was disconnected locally, but the wallet app did not confirm.", LevelWarn)
	ErrNetwork = New(CodeWalletNetworkError, "wallet network error",
		"Network problem while talking to your wallet. Please retry.", LevelWarn)
	ErrUserCancelled = New(CodeWalletUserCancelled, "user cancelled wallet connection",
		"Wallet connection was cancelled.", LevelInfo)
	ErrDidNotSignIn = New(CodeWalletNotSignedIn, "user did not sign in",
		"Sign-in was not completed in your wallet.", LevelWarn)
	ErrWalletBusy = New(CodeWalletBusy, "wallet operation already in progress",
		"Your wallet is busy with another request.", LevelWarn)
	ErrConnectAborted = New(CodeWalletAborted, "wallet connection aborted by disconnect",
		"Wallet connection was interrupted.", LevelInfo)
	ErrProviderUnavailable = New(CodeProviderUnavailable, "wallet provider not available",
		"This wallet is not available.", LevelError)

	ErrNotInitialized = New(CodeContractNotInitialized, "contract service not initialized",
		"The marketplace is still starting up. Please try again.", LevelError)
	ErrCallFailed = New(CodeContractCallFailed, "contract call failed",
		"The blockchain transaction failed.", LevelError)

	ErrInvalidInput = New(CodeInvalidInput, "invalid input",
		"Some of the provided values are invalid.", LevelWarn)
	ErrUnknown = New(CodeUnknown, "unknown error",
		"Something went wrong. Please try again.", LevelError)
)

// InvalidInput builds a validation error with a specific developer message.
func InvalidInput(format string, args ...interface{}) *AppError {
	cp := ErrInvalidInput.clone()
	cp.Message = fmt.Sprintf(format, args...)
	return cp
}

// ErrorCoder is implemented by errors that carry a numeric contract error code.
type ErrorCoder interface {
	ErrorCode() int
}

type contractErrorInfo struct {
	message     string
	userMessage string
	level       Level
}

var contractErrors = map[int]contractErrorInfo{
	400: {"bad request to contract", "The request was invalid. Please check your input.", LevelWarn},
	401: {"unauthorized contract call", "Please connect your wallet to continue.", LevelWarn},
	403: {"forbidden contract call", "You do not have permission for this action.", LevelWarn},
	404: {"contract resource not found", "The requested item could not be found.", LevelWarn},
	409: {"contract state conflict", "This item was changed by someone else. Please refresh.", LevelWarn},
	422: {"contract rejected the input", "The provided data could not be processed.", LevelWarn},
	429: {"contract rate limited", "Too many requests. Please wait a moment.", LevelWarn},
	500: {"contract internal error", "The contract failed to process the request.", LevelError},
	503: {"contract service unavailable", "The blockchain service is unavailable. Please try later.", LevelError},
}

// NewContractError maps a numeric contract code onto the HTTP-like taxonomy.
// Unknown codes fall back to 500.
func NewContractError(code int, message string) *AppError {
	info, ok := contractErrors[code]
	status := code
	if !ok {
		info = contractErrors[500]
		status = 500
	}
	if message == "" {
		message = info.message
	}
	e := New(Code(strconv.Itoa(status)), message, info.userMessage, info.level)
	e.Status = status
	e.Context = map[string]interface{}{"errorCode": code}
	return e
}

// WrapContractError converts errors carrying a numeric code; anything else passes through.
func WrapContractError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	var coder ErrorCoder
	if errors.As(err, &coder) {
		return NewContractError(coder.ErrorCode(), "").WithCause(err)
	}
	return err
}

func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	if appErr.Status == 429 || appErr.Status == 503 {
		return true
	}
	return appErr.Code == CodeWalletNetworkError
}

// UserMessage returns the text safe to show to an end user.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.UserMessage
	}
	return ErrUnknown.UserMessage
}

// Report logs err at the level it declares.
func Report(err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		log.Errorw("unexpected error", "err", err)
		return
	}
	kv := []interface{}{"code", appErr.Code, "user_message", appErr.UserMessage}
	for k, v := range appErr.Context {
		kv = append(kv, k, v)
	}
	switch appErr.Level {
	case LevelDebug:
		log.Debugw(appErr.Error(), kv...)
	case LevelInfo:
		log.Infow(appErr.Error(), kv...)
	case LevelWarn:
		log.Warnw(appErr.Error(), kv...)
	default:
		log.Errorw(appErr.Error(), kv...)
	}
}
