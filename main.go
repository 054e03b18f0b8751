package main

import (
	"fmt"
	"os"

	"github.com/Doct0rWats0n/imdb-classification/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	log, err := utils.NewLogger("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	code := execute(newRootCmd(), log)
	log.Sync()
	os.Exit(code)
}

// execute runs root and logs its error, if any, once on log.
func execute(root *cobra.Command, log *zap.Logger) int {
	if err := root.Execute(); err != nil {
		log.Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}
