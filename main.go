// Copyright (C) 2019 Cranky Kernel
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/inconshreveable/mousetrap"
	"github.com/spf13/cobra"
	"gitlab.com/crankykernel/etrade/cmd"
	"gitlab.com/crankykernel/etrade/log"
)

func main() {
	if mousetrap.StartedByExplorer() {
		cobra.MousetrapHelpText = ""
		os.Args = append(os.Args, "auth", "login", "--open")
	}

	if runtime.GOOS == "windows" {
		cmd.DefaultDataDirectory = filepath.Join(os.Getenv("APPDATA"), "ETrade")
	} else if _, err := os.Stat("./etrade.yaml"); err == nil {
		cmd.DefaultDataDirectory = "."
	} else {
		usr, err := user.Current()
		if err != nil {
			log.Fatalf("Failed to get current user: %v", err)
		}
		cmd.DefaultDataDirectory = filepath.Join(usr.HomeDir, ".etrade")
	}

	cmd.InitCobra()
	cmd.Execute()
}
