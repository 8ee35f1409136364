package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/asad/azctl/internal/config"
)

var (
	// Version is set at build time via ldflags.
	// Example: go build -ldflags "-X github.com/asad/azctl/internal/cli.Version=1.0.0"
	Version = "dev"
)

// Operation selectors. At most one may be given; none lists containers.
const (
	flagCreateContainer = "create-container"
	flagDeleteContainer = "delete-container"
	flagListBlobs       = "list-blobs"
	flagPutBlob         = "put-blob"
)

// NewRootCmd builds the azctl command tree. Flags are bound to a fresh viper
// instance so that every AZCTL_* environment variable can stand in for them.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "azctl",
		Short: "Manage containers and blobs on a local Azure storage emulator",
		Long: `azctl manages containers and blobs on a local Azure Blob Storage
emulator such as Azurite, using the emulator's development account.

Without an operation flag it lists the containers of the account.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, v)
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.CountP(config.KeyVerbose, "v", "verbose output (repeatable)")
	persistent.String(config.KeyLogLevel, config.DefaultLogLevel, "log level (debug, info, warn, error)")

	flags := rootCmd.Flags()
	flags.StringP(config.KeyAzuriteURL, "a", config.DefaultAzuriteURL, "Azurite url")
	flags.StringP(config.KeyLog, "l", "", "log file")
	flags.Bool(flagCreateContainer, false, "create a new container")
	flags.Bool(flagDeleteContainer, false, "delete a container")
	flags.StringP(config.KeyContainerName, "c", config.DefaultContainerName, "container name")
	flags.Bool(flagListBlobs, false, "list blobs")
	flags.StringP(flagPutBlob, "p", "", "upload a file as a blob")
	flags.String(config.KeyBlobName, "", "blob name for --put-blob (default: the file path)")
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "timeout for each storage operation")
	flags.Int(config.KeyPageSize, 0, "listing page size (0 lets the service decide)")
	flags.String(config.KeyDelimiter, "", "list blobs hierarchically, skipping virtual directories")
	flags.Bool(config.KeyTLS, false, "connect to the emulator over https")
	flags.String(config.KeyAccountName, "", "storage account name (default: development account)")
	flags.String(config.KeyAccountKey, "", "storage account key (default: development account)")
	rootCmd.MarkFlagsMutuallyExclusive(flagCreateContainer, flagDeleteContainer, flagListBlobs, flagPutBlob)

	bindFlags(v, persistent, config.KeyVerbose, config.KeyLogLevel)
	bindFlags(v, flags,
		config.KeyAzuriteURL, config.KeyLog, config.KeyContainerName, config.KeyBlobName,
		config.KeyTimeout, config.KeyPageSize, config.KeyDelimiter, config.KeyTLS,
		config.KeyAccountName, config.KeyAccountKey,
	)

	rootCmd.AddCommand(newEmulatorCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// newVersionCmd represents the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Print the version number of azctl.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "azctl version %s\n", Version)
		},
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		flag := flags.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := v.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}
}

// Execute is the entry point for the CLI. It should be called from main.go.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
