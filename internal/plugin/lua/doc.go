// Package lua runs user Lua scripts that rewrite or drop diagnostics.
//
// Scripts execute in a sandboxed gopher-lua state. Only the base, table,
// string and math libraries are opened; io, os, debug and package are not
// available and the file loading builtins are removed.
//
// # Filter Scripts
//
// A filter script defines a global function:
//
//	function filter(d)
//	    -- d.file, d.line (1-based), d.message, d.severity, d.tool
//	    if d.tool == "phpmd" and d.severity == "warning" then
//	        return false            -- drop
//	    end
//	    if d.message:find("^Missing") then
//	        return { severity = "warning" }
//	    end
//	    return true                 -- keep unchanged
//	end
//
// Returning false or nil drops the diagnostic. Returning a table replaces
// the fields it sets (message, severity). A script error keeps the
// diagnostic unchanged.
package lua
