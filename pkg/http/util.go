package http

import (
	xutil "github.com/OSINTfan/sso-1/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseUint64Default parses string to uint64 or returns default if empty/invalid.
func ParseUint64Default(s string, def uint64) uint64 { return xutil.ParseUint64Default(s, def) }
