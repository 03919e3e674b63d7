// Package oidc turns identity provider logins into local sessions.
//
// Two flows share the same checks. The redirect flow sends the browser to
// the provider and completes on the callback. The code flow takes an
// authorization code obtained by an embedded client and answers with a
// bearer token. Both validate the returned ID token, require a validated
// local identity for its subject and consult the OpenID verification hook.
package oidc
