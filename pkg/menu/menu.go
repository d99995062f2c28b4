// Package menu provides the restaurant menu tools used by the host agent.
package menu

import (
	"context"
	_ "embed"

	"github.com/pkg/errors"

	"github.com/go-go-golems/turnloop/pkg/inference/tools"
)

const (
	// Specials is the result of get_specials.
	Specials = "Special Soup: Clam Chowder\nSpecial Salad: Cobb Salad\nSpecial Drink: Chai Tea"
	// ItemPrice is the price of every menu item.
	ItemPrice = "$9.99"
)

// Script is the offline conversation script for the host agent.
//
//go:embed script.yaml
var Script []byte

// DefaultInputs is the conversation driven by the run command.
var DefaultInputs = []string{
	"What are your specials?",
	"How much is Clam Chowder soup?",
	"How much is the t-bone steak?",
	"What is the special drink?",
	"Thank you",
}

type priceRequest struct {
	MenuItem string `json:"menu_item" jsonschema:"description=The name of the menu item."`
}

// Specs returns get_specials and get_item_price.
func Specs() ([]tools.Spec, error) {
	price, err := tools.NewTypedTool("get_item_price", "Provides the price of the requested menu item.",
		func(ctx context.Context, in priceRequest) (string, error) {
			return ItemPrice, nil
		})
	if err != nil {
		return nil, err
	}
	return []tools.Spec{
		{
			Name:        "get_specials",
			Description: "Provides a list of specials from the menu.",
			Handler: func(ctx context.Context, args tools.Arguments) (string, error) {
				return Specials, nil
			},
		},
		price,
	}, nil
}

// Register adds the menu tools to reg.
func Register(reg tools.ToolRegistry) error {
	specs, err := Specs()
	if err != nil {
		return err
	}
	for _, s := range specs {
		if err := reg.Register(s); err != nil {
			return errors.Wrapf(err, "could not register %s", s.Name)
		}
	}
	return nil
}
