package authcore

import "errors"

var (
	// ErrInvalidClient is an exported constant or variable used by the authentication core.
	ErrInvalidClient = errors.New("unknown client")
	// ErrInvalidRedirect is an exported constant or variable used by the authentication core.
	ErrInvalidRedirect = errors.New("redirect uri not registered for client")
	// ErrInvalidRequest is an exported constant or variable used by the authentication core.
	ErrInvalidRequest = errors.New("invalid authorization request")
	// ErrUnknownOrExpiredState is an exported constant or variable used by the authentication core.
	ErrUnknownOrExpiredState = errors.New("unknown or expired state")
	// ErrScopeNotGranted is an exported constant or variable used by the authentication core.
	ErrScopeNotGranted = errors.New("scope not granted")
	// ErrInvalidGrant is an exported constant or variable used by the authentication core.
	ErrInvalidGrant = errors.New("invalid grant")
	// ErrTokenReuseDetected is an exported constant or variable used by the authentication core.
	ErrTokenReuseDetected = errors.New("token reuse detected")
	// ErrTokenInvalid is an exported constant or variable used by the authentication core.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication core.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the authentication core.
	ErrAccountLocked = errors.New("account locked")
	// ErrBackendUnavailable is an exported constant or variable used by the authentication core.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication core.
	ErrEngineNotReady = errors.New("engine not initialized")
)
