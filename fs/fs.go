// Package appfs embeds the files the applications need at runtime:
// database migrations, email and page templates, and assets.
package appfs

import "embed"

//go:embed assets migrations all:templates
var FS embed.FS
