package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	cl "kingdom/internal/cli"
	"kingdom/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadCLI()
	if err != nil {
		danger.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "kgd",
		Short:         "Kingdom economy CLI client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newUseCmd(),
		newForgetCmd(),
		newCountryCmd(cfg),
		newLandCmd(cfg),
		newClaimCmd(cfg),
		newCraftCmd(cfg),
		newNPCCmd(cfg),
		newInvCmd(cfg),
		newMarketCmd(cfg),
		newPricesCmd(cfg),
		newItemsCmd(cfg),
		newRecipesCmd(cfg),
		newTopCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		danger.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(cfg config.CLIConfig) *cl.Client {
	return cl.NewClient(cfg.APIBaseURL, cfg.ServiceToken, cfg.AdminToken)
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use",
		Short: "Pin the default country, user and channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			countryID, err := promptInt64("Country (guild) id", 1)
			if err != nil {
				return err
			}
			userID, err := promptInt64("User id", 1)
			if err != nil {
				return err
			}
			channelID, err := promptInt64("Default channel id", 0)
			if err != nil {
				return err
			}
			if err := cl.SaveProfile(cl.Profile{
				CountryID: countryID,
				UserID:    userID,
				ChannelID: channelID,
			}); err != nil {
				return err
			}
			printSuccess("Profile saved.")
			return nil
		},
	}
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Clear the local profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Profile cleared.")
			return nil
		},
	}
}

func newCountryCmd(cfg config.CLIConfig) *cobra.Command {
	country := &cobra.Command{
		Use:   "country",
		Short: "Country treasury and policy commands",
	}

	country.AddCommand(&cobra.Command{
		Use:   "found NAME",
		Short: "Found the country for the pinned guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).CreateCountry(ctx, profile.CountryID, args[0])
			if err != nil {
				return err
			}
			return renderCountry(out)
		},
	})

	country.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show treasury and market tax",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Country(ctx, profile.CountryID)
			if err != nil {
				return err
			}
			return renderCountry(out)
		},
	})

	country.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Show recent treasury movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).TreasuryHistory(ctx, profile.CountryID, 20)
			if err != nil {
				return err
			}
			return renderTreasuryHistory(out)
		},
	})

	country.AddCommand(&cobra.Command{
		Use:   "tax BP",
		Short: "Set the market tax in basis points (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			bp, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid basis points: %s", args[0])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).SetMarketTax(ctx, profile.CountryID, int32(bp))
			if err != nil {
				return err
			}
			return renderCountry(out)
		},
	})

	return country
}

func newLandCmd(cfg config.CLIConfig) *cobra.Command {
	land := &cobra.Command{
		Use:   "land",
		Short: "Land assignment and info commands",
	}

	land.AddCommand(&cobra.Command{
		Use:   "assign TIER",
		Short: "Buy the pinned channel as a land of the given tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			tier, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tier: %s", args[0])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).AssignLand(ctx, profile.CountryID, profile.ChannelID, tier)
			if err != nil {
				return err
			}
			return renderLand(out)
		},
	})

	land.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the country's lands",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Lands(ctx, profile.CountryID)
			if err != nil {
				return err
			}
			return renderLands(out)
		},
	})

	land.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the pinned channel's land",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Land(ctx, profile.CountryID, profile.ChannelID)
			if err != nil {
				return err
			}
			return renderLand(out)
		},
	})

	return land
}

func newClaimCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Run the daily harvest on the pinned channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Claim(ctx, profile.CountryID, profile.UserID, profile.ChannelID)
			if err != nil {
				return err
			}
			return renderClaim(out)
		},
	}
}

func newCraftCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "craft PRODUCT [BATCHES]",
		Short: "Craft a product from the recipe book",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			batches := int64(1)
			if len(args) == 2 {
				batches, err = strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid batch count: %s", args[1])
				}
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Craft(ctx, profile.CountryID, profile.UserID, args[0], batches)
			if err != nil {
				return err
			}
			return renderCraft(out)
		},
	}
}

func newNPCCmd(cfg config.CLIConfig) *cobra.Command {
	npc := &cobra.Command{
		Use:   "npc",
		Short: "NPC trading commands",
	}

	npc.AddCommand(&cobra.Command{
		Use:   "sell ITEM QTY",
		Short: "Sell inventory to the NPC buyer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity: %s", args[1])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).SellToNPC(ctx, profile.CountryID, profile.UserID, args[0], qty)
			if err != nil {
				return err
			}
			return renderNPCSale(out)
		},
	})

	return npc
}

func newInvCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "inv",
		Short: "Show your inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Inventory(ctx, profile.CountryID, profile.UserID)
			if err != nil {
				return err
			}
			return renderInventory(out)
		},
	}
}

func newMarketCmd(cfg config.CLIConfig) *cobra.Command {
	market := &cobra.Command{
		Use:   "market",
		Short: "Player market commands",
	}

	market.AddCommand(&cobra.Command{
		Use:   "list ITEM",
		Short: "Browse open listings for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).OpenListings(ctx, profile.CountryID, args[0], 10)
			if err != nil {
				return err
			}
			return renderMarketBoard(out)
		},
	})

	market.AddCommand(&cobra.Command{
		Use:   "sell ITEM QTY PRICE",
		Short: "List inventory for sale at a unit price",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity: %s", args[1])
			}
			price, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid unit price: %s", args[2])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).RegisterListing(ctx, profile.CountryID, profile.UserID, args[0], qty, price)
			if err != nil {
				return err
			}
			return renderListing(out)
		},
	})

	market.AddCommand(&cobra.Command{
		Use:   "cancel LISTING",
		Short: "Cancel one of your listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			listingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid listing id: %s", args[0])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).CancelListing(ctx, profile.CountryID, listingID, profile.UserID)
			if err != nil {
				return err
			}
			return renderListing(out)
		},
	})

	market.AddCommand(&cobra.Command{
		Use:   "buy LISTING QTY",
		Short: "Quote a purchase, then confirm it interactively",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			listingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid listing id: %s", args[0])
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity: %s", args[1])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(cfg)

			quoted, err := client.QuoteBuy(ctx, profile.CountryID, profile.UserID, listingID, qty)
			if err != nil {
				return err
			}
			token, err := renderQuote(quoted)
			if err != nil {
				return err
			}

			choice, err := promptChoice("Confirm purchase", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if choice != "yes" {
				if _, err := client.CancelQuote(ctx, profile.CountryID, profile.UserID, token); err != nil {
					return err
				}
				printInfo("Purchase cancelled. The listing is untouched.")
				return nil
			}

			out, err := client.ConfirmBuy(ctx, profile.CountryID, profile.UserID, token)
			if err != nil {
				return err
			}
			return renderTrade(out)
		},
	})

	return market
}

func newPricesCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "prices [ITEM]",
		Short: "Show the country's price board",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(cfg)
			if len(args) == 1 {
				out, err := client.Price(ctx, profile.CountryID, args[0])
				if err != nil {
					return err
				}
				return renderPrice(out)
			}
			out, err := client.Prices(ctx, profile.CountryID)
			if err != nil {
				return err
			}
			return renderPrices(out)
		},
	}
}

func newItemsCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "Show the item catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Items(ctx)
			if err != nil {
				return err
			}
			return renderItems(out)
		},
	}
}

func newRecipesCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "recipes [PRODUCT]",
		Short: "Show the recipe book",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(cfg)
			if len(args) == 1 {
				out, err := client.Recipe(ctx, args[0])
				if err != nil {
					return err
				}
				return renderRecipe(out)
			}
			out, err := client.Recipes(ctx)
			if err != nil {
				return err
			}
			return renderRecipes(out)
		},
	}
}

func newTopCmd(cfg config.CLIConfig) *cobra.Command {
	top := &cobra.Command{
		Use:   "top",
		Short: "Rankings",
	}

	top.AddCommand(&cobra.Command{
		Use:   "treasuries",
		Short: "Richest countries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(cfg).TopTreasuries(ctx, 10)
			if err != nil {
				return err
			}
			return renderTreasuryRanks(out)
		},
	})

	balances := &cobra.Command{
		Use:   "balances",
		Short: "Richest users in your country",
		RunE: func(cmd *cobra.Command, args []string) error {
			global, _ := cmd.Flags().GetBool("global")
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(cfg)
			if global {
				out, err := client.TopBalancesGlobal(ctx, 10)
				if err != nil {
					return err
				}
				return renderBalanceRanks(out, "GLOBAL BALANCES")
			}
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			out, err := client.TopBalances(ctx, profile.CountryID, 10)
			if err != nil {
				return err
			}
			return renderBalanceRanks(out, "COUNTRY BALANCES")
		},
	}
	balances.Flags().Bool("global", false, "rank across every country")
	top.AddCommand(balances)

	return top
}
