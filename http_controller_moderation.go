package moderation

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterModerationRoutes mounts the moderation and relation endpoints.
// Mount them behind ProtectedRoute so claims are resolved before handlers
// run. Role membership is enforced by the services themselves.
func RegisterModerationRoutes[T any](app router.Router[T], opts ...ModerationControllerOption) {

	controller := NewModerationController(opts...)

	app.Post(controller.Routes.Requests, controller.RequestSubmit).
		SetName("moderation.requests.submit")
	app.Get(controller.Routes.Requests, controller.RequestsPending).
		SetName("moderation.requests.pending")
	app.Post(controller.Routes.Requests+"/:id/approve", controller.RequestApprove).
		SetName("moderation.requests.approve")
	app.Post(controller.Routes.Requests+"/:id/reject", controller.RequestReject).
		SetName("moderation.requests.reject")

	app.Post(controller.Routes.Contents, controller.ContentCreate).
		SetName("moderation.contents.create")
	app.Get(controller.Routes.PendingContents, controller.ContentsPending).
		SetName("moderation.contents.pending")
	app.Post(controller.Routes.Contents+"/:id/submit", controller.ContentSubmit).
		SetName("moderation.contents.submit")
	app.Post(controller.Routes.Contents+"/:id/publish", controller.ContentPublish).
		SetName("moderation.contents.publish")
	app.Post(controller.Routes.Contents+"/:id/reject", controller.ContentReject).
		SetName("moderation.contents.reject")

	app.Post(controller.Routes.Bookmarks, controller.BookmarkAdd).
		SetName("relations.bookmarks.add")
	app.Delete(controller.Routes.Bookmarks+"/:content_id", controller.BookmarkRemove).
		SetName("relations.bookmarks.remove")
	app.Get(controller.Routes.Bookmarks, controller.BookmarkList).
		SetName("relations.bookmarks.list")

	app.Post(controller.Routes.ReadLater, controller.ReadLaterAdd).
		SetName("relations.readlater.add")
	app.Delete(controller.Routes.ReadLater+"/:content_id", controller.ReadLaterRemove).
		SetName("relations.readlater.remove")
	app.Get(controller.Routes.ReadLater, controller.ReadLaterList).
		SetName("relations.readlater.list")

	app.Get(controller.Routes.Notifications, controller.NotificationsUnread).
		SetName("notifications.unread")
	app.Post(controller.Routes.Notifications+"/:id/read", controller.NotificationMarkRead).
		SetName("notifications.read")

	app.Post(controller.Routes.Contents+"/:id/tags", controller.TagAttach).
		SetName("relations.tags.attach")
	app.Delete(controller.Routes.Contents+"/:id/tags/:tag_id", controller.TagDetach).
		SetName("relations.tags.detach")
	app.Get(controller.Routes.Contents+"/:id/tags", controller.TagList).
		SetName("relations.tags.list")
}

type ModerationControllerRoutes struct {
	Requests        string
	Contents        string
	PendingContents string
	Bookmarks       string
	ReadLater       string
	Notifications   string
}

type ModerationController struct {
	Logger       Logger
	Moderation   *ModerationService
	Relations    *RelationService
	ContextKey   string
	Routes       *ModerationControllerRoutes
	ErrorHandler router.ErrorHandler
}

type ModerationControllerOption func(*ModerationController) *ModerationController

func NewModerationController(opts ...ModerationControllerOption) *ModerationController {
	c := &ModerationController{
		Logger:       defLogger{},
		ErrorHandler: WriteErrorResponse,
		ContextKey:   "user",
		Routes: &ModerationControllerRoutes{
			Requests:        "/moderation/requests",
			Contents:        "/contents",
			PendingContents: "/moderation/contents",
			Bookmarks:       "/bookmarks",
			ReadLater:       "/read-later",
			Notifications:   "/notifications",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Moderation == nil {
		panic("Missing ModerationService in moderation controller...")
	}

	if c.Relations == nil {
		panic("Missing RelationService in moderation controller...")
	}

	return c
}

func (a *ModerationController) claims(ctx router.Context) (AuthClaims, error) {
	if claims, ok := GetRouterClaims(ctx, a.ContextKey); ok {
		return claims, nil
	}
	if claims, ok := GetClaims(ctx.Context()); ok {
		return claims, nil
	}
	return nil, ErrUnauthenticated
}

// RequestSubmitPayload proposes a new category or tag.
type RequestSubmitPayload struct {
	Kind        string `form:"kind" json:"kind"`
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
}

// Validate will run validation rules
func (r RequestSubmitPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Kind,
			validation.Required,
			validation.In(string(SubjectCategory), string(SubjectTag)),
		),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Description, validation.Length(0, 500)),
	)
}

func (a *ModerationController) RequestSubmit(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(RequestSubmitPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	request, err := a.Moderation.SubmitRequest(
		ctx.Context(),
		claims,
		SubjectKind(payload.Kind),
		payload.Name,
		payload.Description,
	)
	if err != nil {
		a.Logger.Error("submit request error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"request": request,
	})
}

func (a *ModerationController) RequestsPending(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	kind := SubjectKind(ctx.Query("kind", ""))
	requests, err := a.Moderation.ListPendingRequests(ctx.Context(), claims, kind)
	if err != nil {
		a.Logger.Error("list pending requests error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"requests": requests,
	})
}

// ReviewPayload carries an optional reviewer note.
type ReviewPayload struct {
	Note string `form:"note" json:"note"`
}

// Validate will run validation rules
func (r ReviewPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Note, validation.Length(0, 500)),
	)
}

func (a *ModerationController) RequestApprove(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	requestID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ReviewPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	decision, err := a.Moderation.ApproveRequest(ctx.Context(), claims, requestID, payload.Note)
	if err != nil {
		a.Logger.Error("approve request error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"request":        decision.Request,
		"entity_id":      decision.EntityID,
		"already_exists": decision.AlreadyExists,
	})
}

func (a *ModerationController) RequestReject(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	requestID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ReviewPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	request, err := a.Moderation.RejectRequest(ctx.Context(), claims, requestID, payload.Note)
	if err != nil {
		a.Logger.Error("reject request error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"request": request,
	})
}

// ContentCreatePayload creates a draft.
type ContentCreatePayload struct {
	Title      string `form:"title" json:"title"`
	Body       string `form:"body" json:"body"`
	CategoryID string `form:"category_id" json:"category_id"`
}

// Validate will run validation rules
func (r ContentCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

func (a *ModerationController) ContentCreate(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ContentCreatePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	draft := &Content{
		Title: payload.Title,
		Body:  payload.Body,
	}

	if payload.CategoryID != "" {
		categoryID, err := uuid.Parse(payload.CategoryID)
		if err != nil {
			return writeValidationResponse(ctx, validation.Errors{
				"category_id": validation.NewError("validation_uuid", "must be a valid UUID"),
			})
		}
		draft.CategoryID = &categoryID
	}

	content, err := a.Moderation.CreateContent(ctx.Context(), claims, draft)
	if err != nil {
		a.Logger.Error("create content error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"content": content,
	})
}

func (a *ModerationController) ContentsPending(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contents, err := a.Moderation.ListPendingContent(ctx.Context(), claims)
	if err != nil {
		a.Logger.Error("list pending content error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"contents": contents,
	})
}

func (a *ModerationController) ContentSubmit(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	content, err := a.Moderation.SubmitContent(ctx.Context(), claims, contentID)
	if err != nil {
		a.Logger.Error("submit content error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"content": content,
	})
}

func (a *ModerationController) ContentPublish(ctx router.Context) error {
	return a.reviewContent(ctx, ContentPublished)
}

func (a *ModerationController) ContentReject(ctx router.Context) error {
	return a.reviewContent(ctx, ContentRejected)
}

func (a *ModerationController) reviewContent(ctx router.Context, target WorkflowState) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ReviewPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	var content *Content
	if target == ContentPublished {
		content, err = a.Moderation.PublishContent(ctx.Context(), claims, contentID, payload.Note)
	} else {
		content, err = a.Moderation.RejectContent(ctx.Context(), claims, contentID, payload.Note)
	}
	if err != nil {
		a.Logger.Error("review content error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"content": content,
	})
}

// LinkPayload targets a content item for a user relation.
type LinkPayload struct {
	ContentID string `form:"content_id" json:"content_id"`
}

// Validate will run validation rules
func (r LinkPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ContentID, validation.Required, validation.By(validUUID)),
	)
}

func (a *ModerationController) BookmarkAdd(ctx router.Context) error {
	claims, contentID, err := a.linkTarget(ctx)
	if err != nil {
		return a.writeError(ctx, err)
	}

	bookmark, err := a.Relations.AddBookmark(ctx.Context(), claims, contentID)
	if err != nil {
		a.Logger.Error("add bookmark error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"bookmark": bookmark,
	})
}

func (a *ModerationController) BookmarkRemove(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "content_id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Relations.RemoveBookmark(ctx.Context(), claims, contentID); err != nil {
		a.Logger.Error("remove bookmark error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

func (a *ModerationController) BookmarkList(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	bookmarks, err := a.Relations.ListBookmarks(ctx.Context(), claims)
	if err != nil {
		a.Logger.Error("list bookmarks error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"bookmarks": bookmarks,
	})
}

func (a *ModerationController) ReadLaterAdd(ctx router.Context) error {
	claims, contentID, err := a.linkTarget(ctx)
	if err != nil {
		return a.writeError(ctx, err)
	}

	item, err := a.Relations.AddReadLater(ctx.Context(), claims, contentID)
	if err != nil {
		a.Logger.Error("add read later error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"item": item,
	})
}

func (a *ModerationController) ReadLaterRemove(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "content_id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Relations.RemoveReadLater(ctx.Context(), claims, contentID); err != nil {
		a.Logger.Error("remove read later error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

func (a *ModerationController) ReadLaterList(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	items, err := a.Relations.ListReadLater(ctx.Context(), claims)
	if err != nil {
		a.Logger.Error("list read later error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"items": items,
	})
}

func (a *ModerationController) NotificationsUnread(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	notifications, err := a.Moderation.ListUnreadNotifications(ctx.Context(), claims)
	if err != nil {
		a.Logger.Error("list unread notifications error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"notifications": notifications,
	})
}

func (a *ModerationController) NotificationMarkRead(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	notificationID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Moderation.MarkNotificationRead(ctx.Context(), claims, notificationID); err != nil {
		a.Logger.Error("mark notification read error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// TagAttachPayload links a canonical tag to a content item.
type TagAttachPayload struct {
	TagID string `form:"tag_id" json:"tag_id"`
}

// Validate will run validation rules
func (r TagAttachPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TagID, validation.Required, validation.By(validUUID)),
	)
}

func (a *ModerationController) TagAttach(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(TagAttachPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, wrapBindError(err))
	}

	if err := payload.Validate(); err != nil {
		return writeValidationResponse(ctx, err)
	}

	tagID, _ := uuid.Parse(payload.TagID)
	link, err := a.Relations.AttachTag(ctx.Context(), claims, contentID, tagID)
	if err != nil {
		a.Logger.Error("attach tag error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"content_tag": link,
	})
}

func (a *ModerationController) TagDetach(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	tagID, err := paramUUID(ctx, "tag_id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Relations.DetachTag(ctx.Context(), claims, contentID, tagID); err != nil {
		a.Logger.Error("detach tag error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

func (a *ModerationController) TagList(ctx router.Context) error {
	claims, err := a.claims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	contentID, err := paramUUID(ctx, "id")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	links, err := a.Relations.ListContentTags(ctx.Context(), claims, contentID)
	if err != nil {
		a.Logger.Error("list content tags error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"content_tags": links,
	})
}

func (a *ModerationController) linkTarget(ctx router.Context) (AuthClaims, uuid.UUID, error) {
	claims, err := a.claims(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}

	payload := new(LinkPayload)
	if err := ctx.Bind(payload); err != nil {
		return nil, uuid.Nil, wrapBindError(err)
	}

	if err := payload.Validate(); err != nil {
		return nil, uuid.Nil, err
	}

	contentID, _ := uuid.Parse(payload.ContentID)
	return claims, contentID, nil
}

// writeError routes validation failures to the field-level envelope and
// everything else to the configured error handler.
func (a *ModerationController) writeError(ctx router.Context, err error) error {
	if verrs, ok := err.(validation.Errors); ok {
		return writeValidationResponse(ctx, verrs)
	}
	return a.ErrorHandler(ctx, err)
}

func paramUUID(ctx router.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid identifier").
			WithTextCode("INVALID_IDENTIFIER").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"param": name})
	}
	return id, nil
}

func validUUID(value any) error {
	s, _ := value.(string)
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}
