// Package secrets resolves the application secret set.
//
// Secrets come from two places: the ApplicationSecrets section of the local
// configuration, and an optional vault payload. The payload is a base64
// encoded JSON object stored under a configurable key, usually served by a
// Vault through Provider:
//
//	{"ApplicationSecrets": {"UserName": "...", "ConnectionStrings": [...]}}
//
// Resolve overlays the local entries on the vault ones. It never fails, an
// unusable payload degrades to the local secrets and is reported in Result.
package secrets
