// Command hioload-mq serves and sends messages over hioload-mq channels.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
