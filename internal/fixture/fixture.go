// Package fixture holds small module bundles shaped like the ones shipped
// by the messaging web client, for use in tests.
package fixture

import (
	_ "embed"
)

// Web is a bundle exercising the web dialect: lazy registration out of
// dependency order, renamed and ignored modules, nesting strips, an
// upper-case enum, oneofs, maps and a module without exports.
//
//go:embed testdata/web.js
var Web string

// Armadillo is a bundle for the armadillo dialect, including the legacy
// WAProtocol.pb message key module.
//
//go:embed testdata/armadillo.js
var Armadillo string
