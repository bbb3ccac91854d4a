package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/syncmld/internal/cli/credentials"
	"github.com/marmos91/syncmld/internal/cli/prompt"
	"github.com/marmos91/syncmld/internal/config"
)

var (
	initForce      bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a syncmld configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/syncmld/config.yaml. Use --config to specify a custom
path, or --interactive to be prompted for the session's role, local and
remote device identifiers, and its first datastore binding.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "prompt for session settings instead of writing defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Session.LocalURI = "local-device"
	cfg.Session.Targets = []config.TargetConfig{{SourceURI: "card", TargetURI: "card"}}

	if initInteractive {
		if err := promptForConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("aborted")
				return nil
			}
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your session")
	fmt.Println("  2. Start syncing with: syncmld start")
	fmt.Printf("  3. Or with a custom config: syncmld start --config %s\n", configPath)
	return nil
}

func promptForConfig(cfg *config.Config) error {
	role, err := prompt.Input("Role (client/server)", cfg.Session.Role)
	if err != nil {
		return err
	}
	cfg.Session.Role = role

	localURI, err := prompt.Input("Local device URI", "local-device")
	if err != nil {
		return err
	}
	cfg.Session.LocalURI = localURI

	remoteDevice, err := prompt.Input("Remote device identifier", "remote-device")
	if err != nil {
		return err
	}
	cfg.Session.RemoteDevice = remoteDevice

	sourceURI, err := prompt.Input("Datastore source URI", "card")
	if err != nil {
		return err
	}
	targetURI, err := prompt.Input("Datastore target URI (remote name)", sourceURI)
	if err != nil {
		return err
	}
	cfg.Session.Targets = []config.TargetConfig{{SourceURI: sourceURI, TargetURI: targetURI}}

	if role == "client" {
		remoteURL, err := prompt.Input("Remote server URL", "http://localhost:7878/syncml/"+localURI)
		if err != nil {
			return err
		}
		cfg.Transport.RemoteURL = remoteURL
	} else {
		listenAddr, err := prompt.Input("Listen address", cfg.Transport.ListenAddress)
		if err != nil {
			return err
		}
		cfg.Transport.ListenAddress = listenAddr
	}

	wantsAuth, err := prompt.Confirm("Enable basic authentication", false)
	if err != nil {
		return err
	}
	if wantsAuth {
		cfg.Session.AuthType = "basic"
		user, err := prompt.Input("Auth username", "")
		if err != nil {
			return err
		}
		pass, err := prompt.Input("Auth password", "")
		if err != nil {
			return err
		}

		external, err := prompt.Confirm("Store the password in a separate credentials file instead of the config file", true)
		if err != nil {
			return err
		}
		if external {
			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("failed to open credentials store: %w", err)
			}
			if err := store.Set(remoteDevice, credentials.Credential{AuthUser: user, AuthPass: pass}); err != nil {
				return fmt.Errorf("failed to save credential: %w", err)
			}
			cfg.Session.AuthUser = user
			fmt.Printf("Password stored in %s\n", store.Path())
		} else {
			cfg.Session.AuthUser = user
			cfg.Session.AuthPass = pass
		}
	}

	return nil
}
