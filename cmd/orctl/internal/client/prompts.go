package client

import (
	"context"
	"errors"

	"github.com/pterm/pterm"

	"github.com/EmOne/openremote/pkg/identity"
)

// ErrNonInteractive is returned by prompts that cannot run without a terminal.
var ErrNonInteractive = errors.New("interactive login disabled")

// PromptBasicLogin asks for a username and password on the terminal. Empty input cancels.
func PromptBasicLogin(_ context.Context, username, password string) (identity.BasicLoginResult, error) {
	if username != "" && password != "" {
		return identity.BasicLoginResult{Username: username, Password: password}, nil
	}
	if username == "" {
		pterm.Info.Println("Log in to the manager (leave the username empty to cancel)")
		input, err := pterm.DefaultInteractiveTextInput.Show("Username")
		if err != nil {
			return identity.BasicLoginResult{}, err
		}
		if input == "" {
			return identity.BasicLoginResult{Cancel: true}, nil
		}
		username = input
	} else {
		pterm.Warning.Printf("Login for %s rejected, try again\n", username)
	}

	pass, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return identity.BasicLoginResult{}, err
	}
	if pass == "" {
		return identity.BasicLoginResult{Cancel: true}, nil
	}
	return identity.BasicLoginResult{Username: username, Password: pass}, nil
}

// CredentialsOnly uses the configured credentials once and never prompts.
func CredentialsOnly(_ context.Context, username, password string) (identity.BasicLoginResult, error) {
	if username == "" || password == "" {
		return identity.BasicLoginResult{}, ErrNonInteractive
	}
	return identity.BasicLoginResult{Username: username, Password: password}, nil
}

// ShowDeviceCode prints the device authorization details.
func ShowDeviceCode(_ context.Context, code identity.DeviceCode) error {
	pterm.DefaultSection.Println("Device login")
	pterm.Info.Printf("Open %s and enter the code below.\n", code.VerificationURI)
	if code.VerificationURIComplete != "" {
		pterm.Info.Printf("Or open %s directly.\n", code.VerificationURIComplete)
	}
	pterm.Println()
	pterm.Printf("    %s\n", pterm.Bold.Sprint(code.UserCode))
	pterm.Println()
	pterm.Info.Printf("Waiting for approval (expires in %s)...\n", code.ExpiresIn)
	return nil
}
