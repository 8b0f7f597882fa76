// Package appfs embeds the SQL migrations, the e-mail templates and the password policy assets.
package appfs

import "embed"

//go:embed assets migrations all:templates
var FS embed.FS
