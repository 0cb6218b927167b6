package api

import (
	"context"
	"net/http"

	"gv-go/internal/gv"
)

// Donations is the donation event client.
type Donations struct {
	*Resource[gv.Donation]
}

var _ gv.DonationAPI = (*Donations)(nil)

// NewDonations creates the donation client.
func NewDonations(c *Client) *Donations {
	return &Donations{Resource: NewResource[gv.Donation](c, gv.ResourceDonations)}
}

// Donate gives amount to donation id and returns the updated donation.
// Unverified users receive a Forbidden error carrying the server's reason.
func (d *Donations) Donate(ctx context.Context, id int64, amount int64) (*gv.Donation, error) {
	body, err := jsonBody(map[string]int64{"amount": amount})
	if err != nil {
		return nil, err
	}
	_, resp, err := d.c.do(ctx, request{
		method:      http.MethodPost,
		path:        d.itemPath(id, "donate"),
		body:        body,
		contentType: "application/json",
		write:       true,
	})
	if err != nil {
		return nil, err
	}
	return decodeItem[gv.Donation](resp)
}
