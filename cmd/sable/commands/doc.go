// Package commands defines the sable CLI: provisioning the local key store,
// managing one-time keys, and creating or restoring recovery backups. The
// network side (uploading keys and backups) is out of scope; commands write
// upload payloads to files for the transport layer to pick up.
package commands
