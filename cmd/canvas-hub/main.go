// Package main - точка входа Canvas Homework Hub.
//
// Hub опрашивает Canvas от имени родителя (observer), отслеживает для
// каждого студента известные и сданные задания и публикует события
// canvas_homework_appeared / canvas_homework_completed ровно один раз
// на переход, в том числе после перезапуска.
//
// Команды:
//   - run          - фоновый процесс: планировщик, HTTP API, приёмники событий
//   - poll         - один цикл опроса
//   - summary      - сводка по сохранённому состоянию
//   - validate     - проверка токена Canvas
//   - reset-state  - сброс сохранённого состояния
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options - общие флаги всех команд.
type options struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "canvas-hub",
		Short:         "Track Canvas homework and emit appeared/completed events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to canvas-hub.yaml config file")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&opts.JSONOutput, "json", false, "Output in JSON format")

	root.AddCommand(
		newRunCmd(opts),
		newPollCmd(opts),
		newSummaryCmd(opts),
		newValidateCmd(opts),
		newResetStateCmd(opts),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
