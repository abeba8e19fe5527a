// Package config loads linthost configuration.
//
// Configuration comes from three layers, lowest priority first: built-in
// defaults, a TOML file, and LINTHOST_* environment variables.
//
//	[log]
//	level = "info"
//
//	[lint]
//	extensions = [".php", ".phtml"]
//	timeout = "30s"
//	shell = ""
//	capture_stderr = true
//	shutdown_timeout = "5s"
//
//	[[tools]]
//	name = "php"
//	executable = "/usr/bin/php"
//	args = ["-l"]
//
//	[watch]
//	debounce = "200ms"
//	ignore = [".git", "vendor", "node_modules"]
//
//	[script]
//	path = "~/.config/linthost/filter.lua"
//
//	[metrics]
//	addr = ":9464"
//
// When the file defines no [[tools]], the phpmd, phpcs and php -l sequence
// is used.
package config
