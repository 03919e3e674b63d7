// Package approval ties remote operations to local policy decisions.
//
// Each remote-initiated operation follows the same protocol: fetch its
// details, load the referenced tresor and identities, ask the policy, then
// either reject it remotely and report ApplicationDenied, or approve it
// remotely and only then mutate the local mirror. A failure between a
// successful remote approval and the local write is reported as
// UnexpectedException and left for out-of-band reconciliation.
//
// The package also owns the user registration state machine
// (init, finish, validate) and the data and profile operations that are
// gated by the same policy.
package approval
