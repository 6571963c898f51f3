package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var appVersion = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "AgentFlow routes channel messages to conversational agents",
	Long: `AgentFlow is the message-routing and execution core that connects
inbound channels (web chat, Telegram, channel gateways, cron) to
configured agents: pairing-code identity resolution, session history,
multi-provider LLM fallback, and command-tag execution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("agentflow", appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
