package commands

import (
	"context"
	"fmt"

	"plantaria/internal/api"
	"plantaria/internal/errs"
)

func Products(ctx context.Context, app *App) error {
	products, err := app.API.Products(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Fprintf(app.Out, "[%d] %s  %.2f\n", p.ID, p.Title, p.Price)
	}
	return nil
}

func AddProduct(ctx context.Context, app *App, title, description string, price float64) error {
	draft := api.ProductDraft{Title: title, Description: description, Price: price}
	if err := app.API.AddProduct(ctx, draft); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Listed %s\n", title)
	return nil
}

func ShowCart(ctx context.Context, app *App) error {
	if err := app.Cart.Load(ctx); err != nil {
		return err
	}
	entries := app.Cart.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(app.Out, "Cart is empty")
		return nil
	}
	var total float64
	for _, e := range entries {
		line := e.UnitPrice * float64(e.Quantity)
		total += line
		fmt.Fprintf(app.Out, "product %d  x%d  %.2f\n", e.ProductID, e.Quantity, line)
	}
	fmt.Fprintf(app.Out, "total: %.2f\n", total)
	return nil
}

func CartAdd(ctx context.Context, app *App, productID int) error {
	if err := app.Cart.Load(ctx); err != nil {
		return err
	}
	products, err := app.API.Products(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if p.ID == productID {
			if err := app.Cart.Add(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added %s to cart\n", p.Title)
			return nil
		}
	}
	return errs.ErrNotFound
}

func CartRemove(ctx context.Context, app *App, productID int) error {
	if err := app.Cart.Load(ctx); err != nil {
		return err
	}
	if err := app.Cart.Remove(ctx, productID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Removed product %d from cart\n", productID)
	return nil
}

func PlaceOrder(ctx context.Context, app *App, productID, quantity int) error {
	order, err := app.Cart.PlaceOrder(ctx, productID, quantity)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Order %d placed\n", order.ID)
	return nil
}

func CancelOrder(ctx context.Context, app *App, orderID int) error {
	if err := app.Cart.Load(ctx); err != nil {
		return err
	}
	if err := app.Cart.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Order %d cancelled\n", orderID)
	return nil
}
