package cmd

import (
	_ "apollo-supervisor/cmd/app"
	_ "apollo-supervisor/cmd/core"
	_ "apollo-supervisor/cmd/misc"
	_ "apollo-supervisor/cmd/root"
	_ "apollo-supervisor/cmd/server"
)
