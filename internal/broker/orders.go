package broker

import (
	"context"
	"fmt"
	"net/http"
)

type orderResponse struct {
	Order struct {
		ID        string  `json:"id"`
		State     string  `json:"state"`
		FillPrice float64 `json:"fill_price"`
	} `json:"order"`
}

// PlaceMultileg submits a net-credit spread order and returns the broker
// order id. The all-or-none flag is forwarded as given; callers opening
// positions must set it.
func (c *HTTPClient) PlaceMultileg(ctx context.Context, order MultilegOrder) (string, error) {
	if order.Duration == "" {
		order.Duration = "day"
	}

	var resp orderResponse
	path := fmt.Sprintf("/v1/accounts/%s/orders", c.account)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, order, &resp); err != nil {
		return "", fmt.Errorf("placing multileg order: %w", err)
	}
	if resp.Order.ID == "" {
		return "", fmt.Errorf("%w: order response missing id", ErrMalformed)
	}
	return resp.Order.ID, nil
}

// GetOrderStatus queries the fill status of a placed order.
func (c *HTTPClient) GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	var resp orderResponse
	path := fmt.Sprintf("/v1/accounts/%s/orders/%s", c.account, orderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return OrderStatus{}, fmt.Errorf("querying order %s: %w", orderID, err)
	}
	return OrderStatus{
		ID:        resp.Order.ID,
		State:     OrderState(resp.Order.State),
		FillPrice: resp.Order.FillPrice,
	}, nil
}

// CancelOrder cancels an unfilled order.
func (c *HTTPClient) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/v1/accounts/%s/orders/%s", c.account, orderID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("canceling order %s: %w", orderID, err)
	}
	return nil
}

// ClosePosition closes a previously filled spread at market and returns
// the fill price (the debit paid to close).
func (c *HTTPClient) ClosePosition(ctx context.Context, orderID string) (float64, error) {
	var resp orderResponse
	path := fmt.Sprintf("/v1/accounts/%s/orders/%s/close", c.account, orderID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return 0, fmt.Errorf("closing position %s: %w", orderID, err)
	}
	return resp.Order.FillPrice, nil
}
