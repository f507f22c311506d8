package config

import "errors"

// ErrMissingChatwootToken indicates neither CHATWOOT_API_TOKEN nor CHATWOOT_API_KEY is set.
var ErrMissingChatwootToken = errors.New("chatwoot api token is not configured")
