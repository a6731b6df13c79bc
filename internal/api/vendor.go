package api

import (
	"context"
	"fmt"
	"strconv"

	"plantaria/internal/models"
)

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.getJSON(ctx, "/vendor/farmer/products_list", &products); err != nil {
		return nil, err
	}
	return products, nil
}

type ProductDraft struct {
	Title       string
	Description string
	Price       float64
	Image       *ImageUpload
}

func (c *Client) AddProduct(ctx context.Context, draft ProductDraft) error {
	fields := map[string]string{
		"title":       draft.Title,
		"description": draft.Description,
		"price":       strconv.FormatFloat(draft.Price, 'f', 2, 64),
	}
	return c.postForm(ctx, "POST", "/vendor/add-product/", fields, draft.Image, nil)
}

func (c *Client) Cart(ctx context.Context) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	if err := c.getJSON(ctx, "/vendor/cart/products/", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CartAdd adds one product to the cart. The server keys cart lines by
// product and rejects duplicates; the response may carry the created entry.
func (c *Client) CartAdd(ctx context.Context, productID int) (models.CartEntry, error) {
	var created models.CartEntry
	err := c.postJSON(ctx, "/vendor/cart/add/", map[string]int{"product_id": productID}, &created)
	return created, err
}

func (c *Client) CartRemove(ctx context.Context, productID int) error {
	return c.postJSON(ctx, "/vendor/cart/remove/", map[string]int{"product_id": productID}, nil)
}

type OrderRequest struct {
	ProductID int `json:"product"`
	Quantity  int `json:"quantity"`
}

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (models.Order, error) {
	var order models.Order
	err := c.postJSON(ctx, "/vendor/farmer/place-order/", req, &order)
	return order, err
}

func (c *Client) CancelOrder(ctx context.Context, orderID int) error {
	return c.postJSON(ctx, fmt.Sprintf("/vendor/farmer/cancel-order/%d/", orderID), nil, nil)
}
