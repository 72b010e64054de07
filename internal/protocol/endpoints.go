package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/models"
)

// Login exchanges email and password for a token pair and stores it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	const op = "login"

	payload, err := json.Marshal(LoginRequest{Email: email, Password: password})
	if err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}

	resp, err := c.Raw(ctx, Request{
		Method:      http.MethodPost,
		Path:        EndpointLogin,
		Body:        payload,
		ContentType: "application/json",
	})
	if err != nil {
		return err
	}

	var creds models.Credentials
	if err := json.Unmarshal(resp.Body, &creds); err == nil && creds.Complete() {
		if err := c.tokens.Save(creds); err != nil {
			return apperrors.Wrap(apperrors.KindPersistFailed, op, err)
		}
		c.logger.Info("Signed in", "email_domain", emailDomain(email))
		return nil
	}

	var wrong wrongCredentialsResponse
	if err := json.Unmarshal(resp.Body, &wrong); err == nil && wrong.IsIncorrectPasswordOrUser != nil {
		return apperrors.New(apperrors.KindWrongPasswordOrEmail, op)
	}

	if resp.StatusCode == http.StatusForbidden {
		return apperrors.Status(apperrors.KindEmailNotVerified, op, resp.StatusCode)
	}
	return apperrors.Wrap(apperrors.KindDecodeFailure, op, fmt.Errorf("unrecognized login response (status %d)", resp.StatusCode))
}

// Register creates an account. The caller logs in afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	const op = "register"

	payload, err := json.Marshal(req)
	if err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}

	resp, err := c.Raw(ctx, Request{
		Method:      http.MethodPost,
		Path:        EndpointRegister,
		Body:        payload,
		ContentType: "application/json",
	})
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusConflict {
		return apperrors.Status(apperrors.KindUserAlreadyExists, op, resp.StatusCode)
	}

	var reply registerResponse
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}
	if reply.Error != nil {
		return apperrors.Application(op, *reply.Error)
	}
	if reply.Success == nil || !*reply.Success {
		return apperrors.Status(apperrors.KindUnexpectedResponse, op, resp.StatusCode)
	}
	return nil
}

// Logout clears the local credentials and then tells the server. The local
// clear happens whatever the server answers; the returned error reports the
// server call.
func (c *Client) Logout(ctx context.Context) error {
	const op = "logout"

	token, hadToken := c.tokens.AccessToken()
	if err := c.tokens.Clear(); err != nil {
		return apperrors.Wrap(apperrors.KindPersistFailed, op, err)
	}
	if !hadToken {
		return nil
	}

	httpReq, err := c.buildRequest(ctx, Request{Method: http.MethodGet, Path: EndpointLogout})
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Server logout failed", "error", err)
		return apperrors.Wrap(apperrors.KindNetwork, op, err)
	}
	httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		c.logger.Warn("Server logout rejected", "status_code", httpResp.StatusCode)
		return apperrors.Status(apperrors.KindUnexpectedResponse, op, httpResp.StatusCode)
	}
	return nil
}

// Me fetches the signed-in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var reply meResponse
	if err := c.GetJSON(ctx, EndpointMe, nil, &reply); err != nil {
		return nil, err
	}
	return &reply.Data, nil
}

// Orders lists the user's orders.
func (c *Client) Orders(ctx context.Context) ([]models.OrderHistory, error) {
	var reply ordersResponse
	if err := c.GetJSON(ctx, EndpointMyOrders, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// OrderDetail fetches one of the user's orders.
func (c *Client) OrderDetail(ctx context.Context, orderID int) (*models.OrderHistory, error) {
	var reply orderDetailResponse
	query := url.Values{"id": {strconv.Itoa(orderID)}}
	if err := c.GetJSON(ctx, EndpointMyOrder, query, &reply); err != nil {
		return nil, err
	}
	return &reply.Data, nil
}

// OrderDetailRaw returns the undecoded detail body for the inspector pane.
func (c *Client) OrderDetailRaw(ctx context.Context, orderID int) ([]byte, error) {
	return c.Get(ctx, EndpointMyOrder, url.Values{"id": {strconv.Itoa(orderID)}})
}

// OrderUpdate fetches the id and status of the current order.
func (c *Client) OrderUpdate(ctx context.Context) (*interfaces.OrderUpdate, error) {
	var reply interfaces.OrderUpdate
	if err := c.GetJSON(ctx, EndpointOrderUpdate, nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CancelOrder cancels an order by server id.
func (c *Client) CancelOrder(ctx context.Context, orderID int) error {
	var reply successResponse
	return c.PostJSON(ctx, EndpointOrderCancel, cancelRequest{ID: orderID}, &reply, true)
}

// PaymentSecret returns the payment client secret of an order.
func (c *Client) PaymentSecret(ctx context.Context, orderID int) (string, error) {
	var reply interfaces.PaymentIntent
	query := url.Values{"id": {strconv.Itoa(orderID)}}
	if err := c.GetJSON(ctx, EndpointOrderPayment, query, &reply); err != nil {
		return "", err
	}
	return reply.ClientSecret, nil
}

// NewOrder places order and returns its payment intent.
func (c *Client) NewOrder(ctx context.Context, order *models.Order) (*interfaces.PaymentIntent, error) {
	if order == nil {
		return nil, fmt.Errorf("order cannot be nil")
	}
	var reply interfaces.PaymentIntent
	if err := c.PostJSON(ctx, EndpointNewOrder, order, &reply, true); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ChangeSetting updates one account field.
func (c *Client) ChangeSetting(ctx context.Context, field models.EditField, value string) error {
	switch field {
	case models.EditUsername, models.EditEmail, models.EditPhone:
	default:
		return fmt.Errorf("unsupported account field %q", field)
	}
	_, err := c.Post(ctx, EndpointChangePrefix+string(field), editFieldRequest{NewValue: value}, true)
	return err
}

// UploadProfilePicture scales img down to at most 800px wide and uploads it
// as a JPEG.
func (c *Client) UploadProfilePicture(ctx context.Context, img image.Image) error {
	const op = "POST " + EndpointUploadPfp

	if img.Bounds().Dx() > pfpMaxWidth {
		img = resize.Resize(pfpMaxWidth, 0, img, resize.Lanczos3)
	}

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 85}); err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, fmt.Errorf("failed to encode picture: %w", err))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.SetBoundary(uuid.NewString()); err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="pfp"; filename="profile.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}
	if _, err := part.Write(encoded.Bytes()); err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}
	if err := writer.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}

	reply, err := c.Do(ctx, Request{
		Method:        http.MethodPost,
		Path:          EndpointUploadPfp,
		Body:          body.Bytes(),
		ContentType:   writer.FormDataContentType(),
		Authenticated: true,
	})
	if err != nil {
		return err
	}
	_, err = CheckEnvelope(op, reply)
	return err
}

// UploadProfilePictureFile decodes a JPEG or PNG and uploads it.
func (c *Client) UploadProfilePictureFile(ctx context.Context, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, "POST "+EndpointUploadPfp, fmt.Errorf("failed to decode picture: %w", err))
	}
	return c.UploadProfilePicture(ctx, img)
}

// MainScreen lists the cooks near a location. Its reply is not an error
// envelope.
func (c *Client) MainScreen(ctx context.Context, lat, lng float64) ([]models.Cook, error) {
	query := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(lng, 'f', -1, 64)},
	}
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: EndpointMainScreen, Query: query, Authenticated: true})
	if err != nil {
		return nil, err
	}

	var reply mainScreenResponse
	if err := decode("GET "+EndpointMainScreen, body, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// GoogleSign signs in with a Google id token. Existing users get a stored
// token pair; new users get the registration details to confirm.
func (c *Client) GoogleSign(ctx context.Context, idToken string) (*GoogleSignResult, error) {
	const op = "POST " + EndpointGoogleSign

	body, err := c.Post(ctx, EndpointGoogleSign, tokenBody{Token: idToken}, false)
	if err != nil {
		return nil, err
	}

	var creds models.Credentials
	if err := json.Unmarshal(body, &creds); err == nil && creds.Complete() {
		if err := c.tokens.Save(creds); err != nil {
			return nil, apperrors.Wrap(apperrors.KindPersistFailed, op, err)
		}
		return &GoogleSignResult{SignedIn: true}, nil
	}

	var registration GoogleRegistration
	if err := decode(op, body, &registration); err != nil {
		return nil, err
	}
	if registration.Email == "" {
		return nil, apperrors.Wrap(apperrors.KindDecodeFailure, op, fmt.Errorf("reply has neither tokens nor registration details"))
	}
	registration.IDToken = idToken
	return &GoogleSignResult{Registration: &registration}, nil
}

// RequestConfirmMail asks the backend to resend the confirmation email.
func (c *Client) RequestConfirmMail(ctx context.Context) error {
	_, err := c.Get(ctx, EndpointGenerateConfirm, nil)
	return err
}

// ConfirmMail confirms the email address with the mailed token.
func (c *Client) ConfirmMail(ctx context.Context, token string) error {
	_, err := c.Post(ctx, EndpointConfirmMail, tokenBody{Token: token}, true)
	return err
}

// RequestPasswordReset mails a password reset token.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.Post(ctx, EndpointPasswordToken, passwordResetMail{Email: email}, false)
	return err
}

// SetNewPassword sets a new password using a reset token.
func (c *Client) SetNewPassword(ctx context.Context, token, password string) error {
	_, err := c.Post(ctx, EndpointNewPassword, newPasswordRequest{Token: token, Password: password}, false)
	return err
}

func emailDomain(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
