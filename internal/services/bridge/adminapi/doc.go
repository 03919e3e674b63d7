// Package adminapi talks to the remote authority's administrative API.
//
// Every call is authenticated with the AdminKey scheme: a fixed set of
// headers is canonicalized together with the verb and path, signed with
// HMAC-SHA256 under the administrator key, and sent in the Authorization
// header. The Gateway wraps the signed Client with one typed method per
// remote operation.
package adminapi
