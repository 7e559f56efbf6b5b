// Управление формами: создание, изменение, удаление и просмотр форм автором, публичный просмотр формы и шаблоны форм.
//
// Основные возможности:
//   - Управление формами: создание, редактирование, удаление, получение списка.
//   - Проверка схемы полей: типы, правила валидации, условия видимости, автоответы.
//   - Проверка настроек оплаты (аккаунт получателя, минимальная сумма).
//   - Просмотр ответов на форму и скачивание вложений автором.
//   - Просмотр и копирование публичной формы как шаблона.
package aiforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/payments"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/submission"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/types"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type FormContext struct {
	AuthContext
	Form dao.Form
}

// PublicFormContext форма, открытая для просмотра и ответов без аутентификации
type PublicFormContext struct {
	echo.Context
	Form dao.Form
}

// findForm ищет форму по id или слагу
func (s *Services) findForm(formId string) (*dao.Form, error) {
	query := s.db.Preload("Author")
	if id, err := uuid.FromString(formId); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", formId)
	}

	var form dao.Form
	if err := query.First(&form).Error; err != nil {
		return nil, err
	}
	return &form, nil
}

func (s *Services) loadForm(c echo.Context) (*dao.Form, error) {
	form, err := s.findForm(c.Param("formId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrFormNotFound
		}
		return nil, err
	}
	return form, nil
}

func (s *Services) FormMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := s.loadForm(c)
		if err != nil {
			return EError(c, err)
		}
		return next(FormContext{c.(AuthContext), *form})
	}
}

// PublicFormMiddleware пропускает только публичные формы
func (s *Services) PublicFormMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := s.loadForm(c)
		if err != nil {
			return EError(c, err)
		}
		if !form.IsPublic {
			return EErrorDefined(c, apierrors.ErrFormIsPrivate)
		}
		return next(PublicFormContext{c, *form})
	}
}

// TemplateFormMiddleware публичная форма в роли шаблона для любого администратора
func (s *Services) TemplateFormMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := s.loadForm(c)
		if err != nil {
			return EError(c, err)
		}
		if !form.IsPublic {
			return EErrorDefined(c, apierrors.ErrFormIsPrivate)
		}
		return next(FormContext{c.(AuthContext), *form})
	}
}

func (s *Services) AddFormServices(g *echo.Group) {
	g.GET("forms/", s.getFormList)
	g.POST("forms/", s.createForm)

	templateGroup := g.Group("forms/:formId/template", s.TemplateFormMiddleware)
	templateGroup.GET("/", s.getFormTemplate)
	templateGroup.POST("/copy/", s.copyFormTemplate)

	formGroup := g.Group("forms/:formId", s.FormMiddleware)
	formGroup.Use(s.FormPermissionMiddleware)

	formGroup.GET("/", s.getForm)
	formGroup.PATCH("/", s.updateForm)
	formGroup.DELETE("/", s.deleteForm)

	formGroup.GET("/submissions/", s.getSubmissions)
	formGroup.GET("/submissions/:submissionId/", s.getSubmission)
	formGroup.GET("/submissions/:submissionId/attachments/:attachmentId/", s.getSubmissionAttachment)
}

func (s *Services) AddFormWithoutAuthServices(g *echo.Group) {
	formNoAuthGroup := g.Group("forms/:formId", s.PublicFormMiddleware)
	formNoAuthGroup.GET("/", s.getPublicForm)
	formNoAuthGroup.POST("/submissions/encrypt/", s.createEncryptedSubmission, middleware.BodyLimit("50M"))
}

// getFormList godoc
// @id getFormList
// @Summary формы: список форм пользователя
// @Tags Forms
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} dto.Form "Список форм"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/v3/admin/forms/ [get]
func (s *Services) getFormList(c echo.Context) error {
	user := c.(AuthContext).User

	query := s.db.Preload("Author").Order("lower(title)")
	if !user.IsSuperuser {
		query = query.Where("created_by_id = ?", user.ID)
	}

	var forms []dao.Form
	if err := query.Find(&forms).Error; err != nil {
		return EError(c, err)
	}

	counts, err := s.submissionCounts(c.Request().Context(), forms)
	if err != nil {
		return EError(c, err)
	}

	res := make([]dto.Form, 0, len(forms))
	for i := range forms {
		forms[i].SubmissionsCount = counts[forms[i].ID]
		res = append(res, *forms[i].ToDTO())
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Services) submissionCounts(ctx context.Context, forms []dao.Form) (map[uuid.UUID]int64, error) {
	res := make(map[uuid.UUID]int64, len(forms))
	if len(forms) == 0 {
		return res, nil
	}
	ids := make([]uuid.UUID, 0, len(forms))
	for _, f := range forms {
		ids = append(ids, f.ID)
	}

	var rows []struct {
		FormId uuid.UUID
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&dao.Submission{}).
		Select("form_id, count(*) as count").
		Where("form_id in (?)", ids).
		Group("form_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		res[r.FormId] = r.Count
	}
	return res, nil
}

// createForm godoc
// @id createForm
// @Summary формы: создать форму
// @Tags Forms
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param form body reqForm true "Данные формы"
// @Success 200 {object} dto.Form "Созданная форма"
// @Failure 400 {object} apierrors.DefinedError "Ошибка валидации данных формы"
// @Failure 500 {object} apierrors.DefinedError "Ошибка сервера"
// @Router /api/v3/admin/forms/ [post]
func (s *Services) createForm(c echo.Context) error {
	user := c.(AuthContext).User

	var req reqForm
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}

	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormRequestValidate)
	}

	form := req.toDao(&dao.Form{
		ID:          dao.GenUUID(),
		CreatedById: user.ID,
		Slug:        dao.GenSlug(),
	}, nil)

	if err := checkForm(form); err != nil {
		return EError(c, err)
	}

	if err := s.db.Create(form).Error; err != nil {
		return EError(c, err)
	}
	form.Author = user
	form.Active = form.IsActiveAt(time.Now())
	form.SetUrl()

	slog.Info("Form created", "formId", form.ID.String(), "userId", user.ID.String())
	return c.JSON(http.StatusOK, form.ToDTO())
}

// getForm godoc
// @id getForm
// @Summary формы: получить форму
// @Tags Forms
// @Produce json
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Success 200 {object} dto.Form "Форма"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/admin/forms/{formId}/ [get]
func (s *Services) getForm(c echo.Context) error {
	form := c.(FormContext).Form

	count, err := s.store.CountSubmissions(c.Request().Context(), form.ID)
	if err != nil {
		return EError(c, err)
	}
	form.SubmissionsCount = count

	return c.JSON(http.StatusOK, form.ToDTO())
}

// updateForm godoc
// @id updateForm
// @Summary формы: обновить форму
// @Description Обновляет только переданные поля формы.
// @Tags Forms
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Param form body reqForm true "Новые данные формы"
// @Success 200 {object} dto.Form "Обновленная форма"
// @Failure 400 {object} apierrors.DefinedError "Ошибка валидации данных"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/admin/forms/{formId}/ [patch]
func (s *Services) updateForm(c echo.Context) error {
	form := c.(FormContext).Form

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}

	var requestMap map[string]json.RawMessage
	if err := json.Unmarshal(body, &requestMap); err != nil {
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}
	var req reqForm
	if err := json.Unmarshal(body, &req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormBadRequest)
	}

	var updateFields []string
	for k := range requestMap {
		if _, ok := formUpdateColumns[k]; !ok {
			return EErrorDefined(c, apierrors.ErrFormBadConvertRequest.WithFormattedMessage(k))
		}
		updateFields = append(updateFields, k)
	}
	if len(updateFields) == 0 {
		return c.JSON(http.StatusOK, form.ToDTO())
	}

	// в запросе без title проверяется текущее название
	if _, ok := requestMap["title"]; !ok {
		req.Title = form.Title
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormRequestValidate)
	}

	newForm := req.toDao(&form, requestMap)
	if _, ok := requestMap["end_date"]; ok || newForm.EndDate == nil {
		if err := checkForm(newForm); err != nil {
			return EError(c, err)
		}
	} else {
		// уже истекшая дата окончания не мешает менять остальные поля
		if err := checkFormContent(newForm); err != nil {
			return EError(c, err)
		}
	}

	if err := s.db.Select(updateFields).Updates(newForm).Error; err != nil {
		return EError(c, err)
	}
	newForm.Active = newForm.IsActiveAt(time.Now())

	return c.JSON(http.StatusOK, newForm.ToDTO())
}

// deleteForm godoc
// @id deleteForm
// @Summary формы: удалить форму
// @Description Удаляет форму вместе с ответами, сессиями оплаты и вложениями.
// @Tags Forms
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Success 200 "Форма успешно удалена"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/admin/forms/{formId}/ [delete]
func (s *Services) deleteForm(c echo.Context) error {
	form := c.(FormContext).Form

	var assetKeys []string
	if err := s.db.Model(&dao.SubmissionAttachment{}).
		Where("form_id = ?", form.ID).
		Pluck("asset_key", &assetKeys).Error; err != nil {
		return EError(c, err)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&form).Error
	}); err != nil {
		return EError(c, err)
	}

	for _, key := range assetKeys {
		if err := s.storage.Delete(c.Request().Context(), key); err != nil {
			slog.Error("Delete submission attachment", "formId", form.ID.String(), "key", key, "err", err)
		}
	}

	return c.NoContent(http.StatusOK)
}

// getPublicForm godoc
// @id getPublicForm
// @Summary формы: получить публичную форму
// @Description Форма для заполнения, без настроек оплаты и данных автора.
// @Tags Forms
// @Produce json
// @Param formId path string true "ID или слаг формы"
// @Success 200 {object} dto.FormLight "Форма"
// @Failure 403 {object} apierrors.DefinedError "Форма не является публичной"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/forms/{formId}/ [get]
func (s *Services) getPublicForm(c echo.Context) error {
	form := c.(PublicFormContext).Form
	return c.JSON(http.StatusOK, form.ToLightDTO())
}

// getFormTemplate godoc
// @id getFormTemplate
// @Summary шаблоны: получить публичную форму как шаблон
// @Tags Forms
// @Produce json
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Success 200 {object} dto.FormLight "Шаблон"
// @Failure 403 {object} apierrors.DefinedError "Форма не является публичной"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/admin/forms/{formId}/template/ [get]
func (s *Services) getFormTemplate(c echo.Context) error {
	form := c.(FormContext).Form
	return c.JSON(http.StatusOK, form.ToLightDTO())
}

// copyFormTemplate godoc
// @id copyFormTemplate
// @Summary шаблоны: создать форму из шаблона
// @Description Копирует поля публичной формы в новую приватную форму текущего пользователя. Настройки оплаты не копируются.
// @Tags Forms
// @Produce json
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Success 200 {object} dto.Form "Новая форма"
// @Failure 403 {object} apierrors.DefinedError "Форма не является публичной"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/admin/forms/{formId}/template/copy/ [post]
func (s *Services) copyFormTemplate(c echo.Context) error {
	user := c.(FormContext).User
	form := c.(FormContext).Form

	newForm := form.Copy(user.ID)
	if err := s.db.Create(newForm).Error; err != nil {
		return EError(c, err)
	}
	newForm.Author = user
	newForm.Active = true
	newForm.SetUrl()

	return c.JSON(http.StatusOK, newForm.ToDTO())
}

// getSubmissions godoc
// @id getSubmissions
// @Summary ответы: список ответов на форму
// @Tags Submissions
// @Produce json
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Param offset query int false "Смещение для пагинации" default(0)
// @Param limit query int false "Количество результатов на странице" default(100)
// @Success 200 {object} dao.PaginationResponse{result=[]dto.Submission} "Список ответов"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/v3/admin/forms/{formId}/submissions/ [get]
func (s *Services) getSubmissions(c echo.Context) error {
	form := c.(FormContext).Form

	offset := 0
	limit := 100

	if err := echo.QueryParamsBinder(c).
		Int("offset", &offset).
		Int("limit", &limit).
		BindError(); err != nil {
		return EErrorDefined(c, apierrors.ErrBadRequest)
	}

	if limit > 100 || limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var submissions []dao.Submission
	query := s.db.
		Preload("CheckoutSession").
		Preload("Attachments").
		Where("form_id = ?", form.ID).
		Order("seq_id desc")

	resp, err := dao.PaginationRequest(offset, limit, query, &submissions)
	if err != nil {
		return EError(c, err)
	}

	res := make([]dto.Submission, 0, len(submissions))
	for i := range submissions {
		res = append(res, *submissions[i].ToDTO())
	}
	resp.Result = res

	return c.JSON(http.StatusOK, resp)
}

// getSubmission godoc
// @id getSubmission
// @Summary ответы: получить ответ
// @Description Ответ по id или порядковому номеру вместе с сессией оплаты и вложениями.
// @Tags Submissions
// @Produce json
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Param submissionId path string true "ID или порядковый номер ответа"
// @Success 200 {object} dto.Submission "Ответ"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Ответ не найден"
// @Router /api/v3/admin/forms/{formId}/submissions/{submissionId}/ [get]
func (s *Services) getSubmission(c echo.Context) error {
	form := c.(FormContext).Form

	sub, err := s.findSubmission(form.ID, c.Param("submissionId"), true)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, sub.ToDTO())
}

// getSubmissionAttachment godoc
// @id getSubmissionAttachment
// @Summary ответы: скачать вложение
// @Description Зашифрованное содержимое вложения ответа. Расшифровывается на стороне клиента секретным ключом формы.
// @Tags Submissions
// @Produce plain
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Param submissionId path string true "ID или порядковый номер ответа"
// @Param attachmentId path string true "ID вложения"
// @Success 200 {string} string "Зашифрованное вложение"
// @Failure 403 {object} apierrors.DefinedError "Недостаточно прав"
// @Failure 404 {object} apierrors.DefinedError "Ответ или вложение не найдены"
// @Router /api/v3/admin/forms/{formId}/submissions/{submissionId}/attachments/{attachmentId}/ [get]
func (s *Services) getSubmissionAttachment(c echo.Context) error {
	form := c.(FormContext).Form
	ctx := c.Request().Context()

	sub, err := s.findSubmission(form.ID, c.Param("submissionId"), false)
	if err != nil {
		return EError(c, err)
	}

	attachmentId, err := uuid.FromString(c.Param("attachmentId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrAttachmentNotFound)
	}
	var attachment dao.SubmissionAttachment
	if err := s.db.Where("id = ? AND submission_id = ?", attachmentId, sub.ID).First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorDefined(c, apierrors.ErrAttachmentNotFound)
		}
		return EError(c, err)
	}

	if s.storage == nil {
		return EErrorDefined(c, apierrors.ErrAttachmentNotFound)
	}
	ok, err := s.storage.Exist(ctx, attachment.AssetKey)
	if err != nil {
		return EError(c, err)
	}
	if !ok {
		slog.Warn("Attachment blob is missing", "attachmentId", attachment.ID.String(), "key", attachment.AssetKey)
		return EErrorDefined(c, apierrors.ErrAttachmentNotFound)
	}
	data, err := s.storage.Load(ctx, attachment.AssetKey)
	if err != nil {
		return EError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": attachment.FileName}))
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, data)
}

// findSubmission ответ формы по id или порядковому номеру
func (s *Services) findSubmission(formId uuid.UUID, rawId string, preload bool) (*dao.Submission, error) {
	query := s.db.Where("form_id = ?", formId)
	if preload {
		query = query.Preload("CheckoutSession").Preload("Attachments")
	}
	if seq, err := strconv.Atoi(rawId); err == nil {
		query = query.Where("seq_id = ?", seq)
	} else if id, err := uuid.FromString(rawId); err == nil {
		query = query.Where("id = ?", id)
	} else {
		return nil, apierrors.ErrSubmissionNotFound
	}

	var sub dao.Submission
	if err := query.First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// checkForm проверяет дату окончания и содержимое формы
func checkForm(form *dao.Form) error {
	if form.EndDate != nil && !form.IsActiveAt(time.Now()) {
		return apierrors.ErrFormEndDate
	}
	return checkFormContent(form)
}

func checkFormContent(form *dao.Form) error {
	if err := checkFormFields(&form.Fields); err != nil {
		return apierrors.ErrFormCheckFields.WithFormattedMessage(err.Error())
	}
	if err := checkPaymentConfig(form.PaymentConfig); err != nil {
		return apierrors.ErrFormPaymentConfig.WithFormattedMessage(err.Error())
	}
	return nil
}

// checkFormFields проверяет схему полей: уникальные id, известные типы, правила валидации,
// условия видимости только на предыдущие поля, автоответ только у полей email
func checkFormFields(fields *types.FormFieldsSlice) error {
	seen := make(map[string]string, len(*fields))
	for i, field := range *fields {
		if !validFieldId(field.Id) {
			return fmt.Errorf("field #%d: invalid id", i+1)
		}
		if _, ok := seen[field.Id]; ok {
			return fmt.Errorf("field %s: duplicate id", field.Id)
		}
		if !submission.SupportedFieldType(field.Type) {
			return fmt.Errorf("field %s: unknown field type %s", field.Id, field.Type)
		}
		if err := submission.CheckValidationRule(field); err != nil {
			return err
		}

		for _, cond := range field.ShowWhen {
			if _, ok := seen[cond.FieldId]; !ok {
				return fmt.Errorf("field %s: visibility condition must refer to a previous field", field.Id)
			}
			if !knownConditions[cond.Condition] {
				return fmt.Errorf("field %s: unknown condition %s", field.Id, cond.Condition)
			}
		}

		if field.AutoReply != nil {
			if field.Type != types.FieldEmail {
				return fmt.Errorf("field %s: auto reply is only allowed for email fields", field.Id)
			}
			(*fields)[i].AutoReply.Subject = strings.TrimSpace(field.AutoReply.Subject)
		}

		(*fields)[i].Val = nil
		seen[field.Id] = field.Type
	}
	return nil
}

var knownConditions = map[string]bool{
	types.ConditionIsEqual:       true,
	types.ConditionIsNotEqual:    true,
	types.ConditionIsOneOf:       true,
	types.ConditionIsLessThan:    true,
	types.ConditionIsGreaterThan: true,
}

// checkPaymentConfig заполненные части настроек оплаты должны быть корректны. Неполные настройки допустимы, оплата для такой формы не запрашивается.
func checkPaymentConfig(p *types.PaymentConfig) error {
	if p == nil {
		return nil
	}
	if p.MerchantAccountId != "" {
		if err := payments.ValidateAccount(p.MerchantAccountId); err != nil {
			return err
		}
	}
	if p.LineItem != nil {
		if strings.TrimSpace(p.LineItem.Name) == "" {
			return errors.New("line item name is required")
		}
		if err := payments.ValidateAmount(p.LineItem.Amount); err != nil {
			return err
		}
	}
	return nil
}

// колонки формы, которые можно менять запросом PATCH
var formUpdateColumns = map[string]struct{}{
	"title":            {},
	"description":      {},
	"is_public":        {},
	"end_date":         {},
	"submission_limit": {},
	"fields":           {},
	"payment_config":   {},
}

type reqPaymentConfig struct {
	MerchantAccountId string          `json:"merchant_account_id" validate:"omitempty,paymentAccount"`
	LineItem          *types.LineItem `json:"line_item,omitempty" extensions:"x-nullable"`
}

type reqForm struct {
	Title           string                `json:"title" validate:"formTitle"`
	Description     string                `json:"description"`
	IsPublic        bool                  `json:"is_public"`
	EndDate         *time.Time            `json:"end_date" extensions:"x-nullable"`
	SubmissionLimit *int                  `json:"submission_limit" validate:"omitempty,min=1" extensions:"x-nullable"`
	Fields          types.FormFieldsSlice `json:"fields"`
	PaymentConfig   *reqPaymentConfig     `json:"payment_config" extensions:"x-nullable"`
}

// toDao переносит в форму поля запроса. updFields - поля, пришедшие в запросе на изменение; nil означает все поля.
func (rf *reqForm) toDao(form *dao.Form, updFields map[string]json.RawMessage) *dao.Form {
	res := *form
	has := func(key string) bool {
		if updFields == nil {
			return true
		}
		_, ok := updFields[key]
		return ok
	}

	if has("title") {
		res.Title = rf.Title
	}
	if has("description") {
		res.Description = rf.Description
	}
	if has("is_public") {
		res.IsPublic = rf.IsPublic
	}
	if has("end_date") {
		res.EndDate = rf.EndDate
	}
	if has("submission_limit") {
		res.SubmissionLimit = rf.SubmissionLimit
	}
	if has("fields") {
		res.Fields = rf.Fields
		if res.Fields == nil {
			res.Fields = types.FormFieldsSlice{}
		}
	}
	if has("payment_config") {
		res.PaymentConfig = nil
		if rf.PaymentConfig != nil {
			res.PaymentConfig = &types.PaymentConfig{
				MerchantAccountId: rf.PaymentConfig.MerchantAccountId,
				LineItem:          rf.PaymentConfig.LineItem,
			}
		}
	}
	return &res
}
