package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/girish946/psubd/internal/client"
)

var (
	clientAddr       string
	clientUnixPath   string
	clientTLSCert    string
	clientServerName string
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a running broker",
	}
	cmd.PersistentFlags().StringVar(&clientAddr, "addr", "127.0.0.1:6480", "broker TCP/TLS address")
	cmd.PersistentFlags().StringVar(&clientUnixPath, "unix", "", "broker Unix-domain socket path (overrides --addr)")
	cmd.PersistentFlags().StringVar(&clientTLSCert, "tls-cert", "", "PEM CA certificate; enables TLS when set")
	cmd.PersistentFlags().StringVar(&clientServerName, "tls-server-name", "", "override TLS hostname verification")

	cmd.AddCommand(newClientPublishCmd())
	cmd.AddCommand(newClientSubscribeCmd())
	cmd.AddCommand(newClientQueryCmd())
	return cmd
}

func dialClient() (*client.Client, error) {
	opts := client.Options{
		Addr:          clientAddr,
		TLSCertPath:   clientTLSCert,
		TLSServerName: clientServerName,
	}
	switch {
	case clientUnixPath != "":
		opts.Transport = client.TransportUnix
		opts.Addr = clientUnixPath
	case clientTLSCert != "":
		opts.Transport = client.TransportTLS
	default:
		opts.Transport = client.TransportTCP
	}

	c := client.New(opts)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClientPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <topic> <message>",
		Short: "Publish a message to a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialClient()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Publish(args[0], []byte(args[1]))
		},
	}
}

func newClientSubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <topic>",
		Short: "Subscribe to a topic and print incoming messages until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialClient()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Subscribe(args[0]); err != nil {
				return err
			}

			for {
				m, err := c.ReadMessage()
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s: %s\n", m.Topic, string(m.Payload))
			}
		},
	}
}

func newClientQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <topic>",
		Short: `Query subscriber counts for a topic, or "*" for all topics`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialClient()
			if err != nil {
				return err
			}
			defer c.Close()

			body, err := c.Query(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, body)
			return nil
		},
	}
}
