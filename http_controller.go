package warehouse

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// Controller wires the HTTP surface: auth flows plus the item, note, and
// tag endpoints. Every route past /auth sits behind the access token gate
// and a role gate.
type Controller struct {
	Debug  bool
	Logger Logger
	Repo   RepositoryManager
	Auther Authenticator
	Tokens TokenService
	Block  Blocklist
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in warehouse controller...")
	}
	if c.Auther == nil {
		panic("Missing Authenticator in warehouse controller...")
	}
	if c.Tokens == nil {
		panic("Missing TokenService in warehouse controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = auther
		return c
	}
}

func WithControllerTokens(tokens TokenService, block Blocklist) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tokens = tokens
		c.Block = block
		return c
	}
}

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// ErrorHandler maps rich errors to HTTP responses; plug it into the fiber
// app config.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiber.Map{
				"message": fiberErr.Message,
			},
		})
	}

	status := HTTPStatus(err)
	message := "internal server error"
	textCode := ""

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if status < fiber.StatusInternalServerError {
			message = richErr.Message
		}
		textCode = richErr.TextCode
	}

	body := fiber.Map{"message": message}
	if textCode != "" {
		body["text_code"] = textCode
	}

	return c.Status(status).JSON(fiber.Map{"error": body})
}

// Register mounts every route on the app
func (a *Controller) Register(app *fiber.App) {
	accessGate := Protected(a.Tokens, a.Block)
	refreshGate := RefreshProtected(a.Tokens, a.Block)
	memberGate := RequireRoles(a.Repo.Users(), RoleUser, RoleAdmin)
	adminGate := RequireRoles(a.Repo.Users(), RoleAdmin)

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/signup", a.Signup)
	auth.Get("/verify/:token", a.VerifyEmail)
	auth.Post("/login", a.Login)
	auth.Post("/refresh", refreshGate, a.Refresh)
	auth.Post("/logout", accessGate, a.Logout)
	auth.Get("/me", accessGate, memberGate, a.Me)
	auth.Post("/send-mail", accessGate, adminGate, a.SendMail)
	auth.Post("/password-reset", a.PasswordResetRequest)
	auth.Post("/password-reset-confirm/:token", a.PasswordResetConfirm)

	items := api.Group("/items", accessGate, memberGate)
	items.Get("/", a.ItemList)
	items.Post("/", a.ItemCreate)
	items.Get("/:id", a.ItemGet)
	items.Patch("/:id", a.ItemUpdate)
	items.Delete("/:id", a.ItemDelete)
	items.Post("/:id/notes", a.NoteCreate)
	items.Post("/:id/tags", a.ItemTagAttach)
	items.Delete("/:id/tags/:tagID", a.ItemTagDetach)

	notes := api.Group("/notes", accessGate, memberGate)
	notes.Get("/", a.NoteList)
	notes.Patch("/:id", a.NoteUpdate)
	notes.Delete("/:id", a.NoteDelete)

	tags := api.Group("/tags", accessGate, memberGate)
	tags.Get("/", a.TagList)
	tags.Post("/", adminGate, a.TagCreate)
	tags.Patch("/:id", adminGate, a.TagUpdate)
	tags.Delete("/:id", adminGate, a.TagDelete)
}

// SignupPayload is the account registration body
type SignupPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 10)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 70), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 25)),
		validation.Field(&r.LastName, validation.Length(0, 25)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *Controller) Signup(c *fiber.Ctx) error {
	payload := new(SignupPayload)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse signup payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	if a.Debug {
		fmt.Println("======= SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=====================")
	}

	user, err := a.Auther.Signup(c.UserContext(), SignupInput{
		Username:  payload.Username,
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Password:  payload.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (a *Controller) VerifyEmail(c *fiber.Ctx) error {
	user, err := a.Auther.VerifyEmail(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"email":             user.Email,
		"is_email_verified": true,
	})
}

// LoginPayload is the credentials body. The identifier can be an email, a
// username, or a record id.
type LoginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Login(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse login payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	pair, err := a.Auther.Login(c.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

func (a *Controller) Refresh(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return ErrRefreshTokenRequired
	}

	access, err := a.Auther.Refresh(c.UserContext(), claims)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"access_token": access})
}

func (a *Controller) Logout(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return ErrAccessTokenRequired
	}

	if err := a.Auther.Logout(c.UserContext(), claims); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"revoked": true})
}

// Me returns the account behind the presented access token
func (a *Controller) Me(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	return c.JSON(user)
}

// SendMailPayload is the ad-hoc outbound mail body
type SendMailPayload struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	HTMLBody   string   `json:"html_body"`
}

// Validate will run validation rules
func (r SendMailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Recipients, validation.Required),
		validation.Field(&r.Subject, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.HTMLBody, validation.Required),
	)
}

// SendMail lets an admin push an arbitrary message onto the mail queue
func (a *Controller) SendMail(c *fiber.Ctx) error {
	payload := new(SendMailPayload)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse mail payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	if err := a.Auther.SendMail(c.UserContext(), payload.Recipients, payload.Subject, payload.HTMLBody); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *Controller) PasswordResetRequest(c *fiber.Ctx) error {
	payload := new(PasswordResetRequestPayload)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse password reset payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	if err := a.Auther.RequestPasswordReset(c.UserContext(), payload.Email); err != nil {
		return err
	}

	// Same response whether or not the account exists
	return c.JSON(fiber.Map{"sent": true})
}

// PasswordResetConfirmPayload carries the new password pair
type PasswordResetConfirmPayload struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (a *Controller) PasswordResetConfirm(c *fiber.Ctx) error {
	payload := new(PasswordResetConfirmPayload)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse password confirm payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	err := a.Auther.ConfirmPasswordReset(
		c.UserContext(),
		c.Params("token"),
		payload.Password,
		payload.ConfirmPassword,
	)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"reset": true})
}

// ItemCreatePayload is the item registration body
type ItemCreatePayload struct {
	Title        string    `json:"title"`
	Owner        string    `json:"owner"`
	StoredUntil  time.Time `json:"stored_until"`
	ContactPhone string    `json:"contact_phone"`
	Tags         []string  `json:"tags"`
}

// Validate will run validation rules
func (r ItemCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Owner, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.StoredUntil, validation.Required),
		validation.Field(&r.ContactPhone, validation.By(ValidatePhoneNumber)),
	)
}

// ValidatePhoneNumber accepts E.164-ish phone numbers; empty is allowed
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return stderrors.New("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return stderrors.New("must be a valid phone number")
	}

	return nil
}

func (a *Controller) ItemList(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	var (
		records []*Item
		err     error
	)

	// Admins see the whole warehouse; everyone else their own shelf
	if user.Role == RoleAdmin {
		records, err = a.Repo.Items().List(c.UserContext())
	} else {
		records, err = a.Repo.Items().ListByUser(c.UserContext(), user.ID)
	}
	if err != nil {
		return err
	}

	return c.JSON(records)
}

func (a *Controller) ItemCreate(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	payload := new(ItemCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse item payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	item := &Item{
		Title:        payload.Title,
		Owner:        payload.Owner,
		StoredUntil:  payload.StoredUntil,
		ContactPhone: payload.ContactPhone,
		UserID:       user.ID,
	}

	err := a.Repo.RunInTx(c.UserContext(), nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if item, err = a.Repo.Items().CreateTx(ctx, tx, item); err != nil {
			return err
		}

		for _, name := range payload.Tags {
			tag, err := a.Repo.Tags().GetOrCreateByNameTx(ctx, tx, name)
			if err != nil {
				return err
			}
			if err := a.Repo.Tags().AttachToItemTx(ctx, tx, item.ID, tag.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	created, err := a.Repo.Items().GetWithDetails(c.UserContext(), item.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (a *Controller) ItemGet(c *fiber.Ctx) error {
	item, err := a.loadOwnedItem(c)
	if err != nil {
		return err
	}

	return c.JSON(item)
}

func (a *Controller) ItemUpdate(c *fiber.Ctx) error {
	item, err := a.loadOwnedItem(c)
	if err != nil {
		return err
	}

	update := ItemUpdate{}
	if err := c.BodyParser(&update); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse item update")
	}

	if update.ContactPhone != nil {
		if err := ValidatePhoneNumber(*update.ContactPhone); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "contact_phone: "+err.Error())
		}
	}

	updated, err := a.Repo.Items().UpdateFields(c.UserContext(), item.ID, update)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

func (a *Controller) ItemDelete(c *fiber.Ctx) error {
	item, err := a.loadOwnedItem(c)
	if err != nil {
		return err
	}

	if err := a.Repo.Items().Delete(c.UserContext(), item.ID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// NotePayload is the note body
type NotePayload struct {
	Text string `json:"note_text"`
}

// Validate will run validation rules
func (r NotePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, 1000)),
	)
}

func (a *Controller) NoteCreate(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	item, err := a.loadOwnedItem(c)
	if err != nil {
		return err
	}

	payload := new(NotePayload)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse note payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	note, err := a.Repo.Notes().Create(c.UserContext(), &Note{
		Text:   payload.Text,
		UserID: user.ID,
		ItemID: item.ID,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(note)
}

func (a *Controller) NoteList(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	records, err := a.Repo.Notes().ListByUser(c.UserContext(), user.ID)
	if err != nil {
		return err
	}

	return c.JSON(records)
}

func (a *Controller) NoteUpdate(c *fiber.Ctx) error {
	note, err := a.loadOwnedNote(c)
	if err != nil {
		return err
	}

	payload := new(NotePayload)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse note payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	updated, err := a.Repo.Notes().UpdateText(c.UserContext(), note.ID, payload.Text)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

func (a *Controller) NoteDelete(c *fiber.Ctx) error {
	note, err := a.loadOwnedNote(c)
	if err != nil {
		return err
	}

	if err := a.Repo.Notes().Delete(c.UserContext(), note.ID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TagPayload is the tag body
type TagPayload struct {
	Name string `json:"name"`
}

// Validate will run validation rules
func (r TagPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 50)),
	)
}

func (a *Controller) TagList(c *fiber.Ctx) error {
	records, err := a.Repo.Tags().List(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(records)
}

func (a *Controller) TagCreate(c *fiber.Ctx) error {
	payload := new(TagPayload)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse tag payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	tag, err := a.Repo.Tags().Create(c.UserContext(), &Tag{Name: payload.Name})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(tag)
}

func (a *Controller) TagUpdate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrTagNotFound
	}

	payload := new(TagPayload)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse tag payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	tag, err := a.Repo.Tags().UpdateName(c.UserContext(), id, payload.Name)
	if err != nil {
		return err
	}

	return c.JSON(tag)
}

func (a *Controller) TagDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrTagNotFound
	}

	if err := a.Repo.Tags().Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ItemTagAttach links a tag (created on demand) to an item
func (a *Controller) ItemTagAttach(c *fiber.Ctx) error {
	item, err := a.loadOwnedItem(c)
	if err != nil {
		return err
	}

	payload := new(TagPayload)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse tag payload")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	err = a.Repo.RunInTx(c.UserContext(), nil, func(ctx context.Context, tx bun.Tx) error {
		tag, err := a.Repo.Tags().GetOrCreateByNameTx(ctx, tx, payload.Name)
		if err != nil {
			return err
		}
		return a.Repo.Tags().AttachToItemTx(ctx, tx, item.ID, tag.ID)
	})
	if err != nil {
		return err
	}

	updated, err := a.Repo.Items().GetWithDetails(c.UserContext(), item.ID)
	if err != nil {
		return err
	}

	return c.JSON(updated)
}

func (a *Controller) ItemTagDetach(c *fiber.Ctx) error {
	item, err := a.loadOwnedItem(c)
	if err != nil {
		return err
	}

	tagID, err := uuid.Parse(c.Params("tagID"))
	if err != nil {
		return ErrTagNotFound
	}

	if err := a.Repo.Tags().DetachFromItem(c.UserContext(), item.ID, tagID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// loadOwnedItem resolves the :id param and enforces ownership: users only
// reach their own items, admins reach everything.
func (a *Controller) loadOwnedItem(c *fiber.Ctx) (*Item, error) {
	user, ok := CurrentUser(c)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, ErrItemNotFound
	}

	item, err := a.Repo.Items().GetWithDetails(c.UserContext(), id)
	if err != nil {
		return nil, err
	}

	if user.Role != RoleAdmin && item.UserID != user.ID {
		// Hide other users' inventory instead of admitting it exists
		return nil, ErrItemNotFound
	}

	return item, nil
}

func (a *Controller) loadOwnedNote(c *fiber.Ctx) (*Note, error) {
	user, ok := CurrentUser(c)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, ErrNoteNotFound
	}

	note, err := a.Repo.Notes().Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}

	if user.Role != RoleAdmin && note.UserID != user.ID {
		return nil, ErrNoteNotFound
	}

	return note, nil
}
