// Package types provides the core types shared across Project L.I.F.E.
// This package has ZERO dependencies on other project packages to avoid
// circular imports. All other packages should import types from here.
package types
