package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// ActivationTokenSize is the number of random bytes behind an activation
// token (hex encoded, so twice as many characters).
const ActivationTokenSize = 32
