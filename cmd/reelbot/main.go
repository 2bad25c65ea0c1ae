// Command reelbot runs the Instagram preview proxy and the Telegram video bot.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
