// Package mappings holds the index mapping definitions shipped with the
// binary. Files at the root are used by the default resolver, files under
// ngram/ by the ngram resolver.
package mappings

import "embed"

//go:embed *.json ngram/*.json
var FS embed.FS
