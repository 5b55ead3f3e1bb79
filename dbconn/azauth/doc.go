// Package azauth provisions Azure AD bearer tokens for cloud-hosted
// PostgreSQL endpoints so operators do not have to manage static passwords.
//
// A Cache picks one of three identity strategies (service principal,
// user-assigned managed identity, system-assigned managed identity) from the
// fields present in its config, constructs the credential lazily, and reuses
// the issued token until it is close to expiry.
package azauth
