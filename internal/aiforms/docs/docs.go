// Описание API в формате Swagger 2.0 для /api/v3/swagger/.
// Полное описание со схемами собирается из аннотаций обработчиков командой go generate (swag init) и заменяет этот файл.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/api/v3/auth/sign-in/": {
            "post": {
                "tags": ["Auth"],
                "summary": "Вход по email и паролю",
                "operationId": "emailLogin",
                "parameters": [{"in": "body", "name": "data", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "Токен доступа", "schema": {"$ref": "#/definitions/LoginResponse"}},
                    "401": {"description": "Неверные учетные данные", "schema": {"$ref": "#/definitions/DefinedError"}}
                }
            }
        },
        "/api/v3/forms/{formId}/": {
            "get": {
                "tags": ["Forms"],
                "summary": "Публичная форма",
                "operationId": "getPublicForm",
                "parameters": [{"$ref": "#/parameters/formId"}],
                "responses": {
                    "200": {"description": "Форма без настроек оплаты"},
                    "403": {"description": "Форма не является публичной", "schema": {"$ref": "#/definitions/DefinedError"}},
                    "404": {"description": "Форма не найдена", "schema": {"$ref": "#/definitions/DefinedError"}}
                }
            }
        },
        "/api/v3/forms/{formId}/submissions/encrypt/": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Отправить зашифрованный ответ",
                "operationId": "createEncryptedSubmission",
                "parameters": [
                    {"$ref": "#/parameters/formId"},
                    {"in": "body", "name": "data", "required": true, "schema": {"$ref": "#/definitions/EncryptedSubmission"}}
                ],
                "responses": {
                    "200": {"description": "Ответ сохранен", "schema": {"$ref": "#/definitions/SubmitResponse"}},
                    "400": {"description": "Некорректный ответ или форма закрыта", "schema": {"$ref": "#/definitions/DefinedError"}},
                    "403": {"description": "Форма не является публичной", "schema": {"$ref": "#/definitions/DefinedError"}},
                    "404": {"description": "Форма не найдена", "schema": {"$ref": "#/definitions/DefinedError"}},
                    "500": {"description": "Ошибка оплаты или сохранения", "schema": {"$ref": "#/definitions/DefinedError"}}
                }
            }
        },
        "/api/v3/admin/forms/": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Forms"],
                "summary": "Список форм пользователя",
                "operationId": "getFormList",
                "responses": {"200": {"description": "Формы"}}
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Forms"],
                "summary": "Создать форму",
                "operationId": "createForm",
                "responses": {
                    "200": {"description": "Созданная форма"},
                    "400": {"description": "Ошибка валидации данных", "schema": {"$ref": "#/definitions/DefinedError"}}
                }
            }
        },
        "/api/v3/admin/forms/{formId}/": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Forms"],
                "summary": "Получить форму",
                "operationId": "getForm",
                "parameters": [{"$ref": "#/parameters/formId"}],
                "responses": {"200": {"description": "Форма"}}
            },
            "patch": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Forms"],
                "summary": "Обновить форму",
                "operationId": "updateForm",
                "parameters": [{"$ref": "#/parameters/formId"}],
                "responses": {"200": {"description": "Обновленная форма"}}
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Forms"],
                "summary": "Удалить форму",
                "operationId": "deleteForm",
                "parameters": [{"$ref": "#/parameters/formId"}],
                "responses": {"200": {"description": "Форма удалена"}}
            }
        },
        "/api/v3/admin/forms/{formId}/template/": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Templates"],
                "summary": "Публичная форма как шаблон",
                "operationId": "getFormTemplate",
                "parameters": [{"$ref": "#/parameters/formId"}],
                "responses": {"200": {"description": "Шаблон"}}
            }
        },
        "/api/v3/admin/forms/{formId}/template/copy/": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Templates"],
                "summary": "Создать форму из шаблона",
                "operationId": "copyFormTemplate",
                "parameters": [{"$ref": "#/parameters/formId"}],
                "responses": {"200": {"description": "Копия формы"}}
            }
        },
        "/api/v3/admin/forms/{formId}/submissions/": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Submissions"],
                "summary": "Список ответов на форму",
                "operationId": "getSubmissions",
                "parameters": [
                    {"$ref": "#/parameters/formId"},
                    {"in": "query", "name": "offset", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer", "maximum": 100}
                ],
                "responses": {"200": {"description": "Страница ответов"}}
            }
        },
        "/api/v3/admin/forms/{formId}/submissions/{submissionId}/": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["Submissions"],
                "summary": "Получить ответ",
                "operationId": "getSubmission",
                "parameters": [
                    {"$ref": "#/parameters/formId"},
                    {"in": "path", "name": "submissionId", "required": true, "type": "string", "description": "ID или порядковый номер ответа"}
                ],
                "responses": {
                    "200": {"description": "Ответ с сессией оплаты"},
                    "404": {"description": "Ответ не найден", "schema": {"$ref": "#/definitions/DefinedError"}}
                }
            }
        },
        "/api/v3/admin/forms/{formId}/submissions/{submissionId}/attachments/{attachmentId}/": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["text/plain"],
                "tags": ["Submissions"],
                "summary": "Скачать зашифрованное вложение",
                "operationId": "getSubmissionAttachment",
                "parameters": [
                    {"$ref": "#/parameters/formId"},
                    {"in": "path", "name": "submissionId", "required": true, "type": "string", "description": "ID или порядковый номер ответа"},
                    {"in": "path", "name": "attachmentId", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Зашифрованное вложение", "schema": {"type": "string"}},
                    "404": {"description": "Ответ или вложение не найдены", "schema": {"$ref": "#/definitions/DefinedError"}}
                }
            }
        }
    },
    "parameters": {
        "formId": {"in": "path", "name": "formId", "required": true, "type": "string", "description": "ID или слаг формы"}
    },
    "definitions": {
        "DefinedError": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "ru_message": {"type": "string"},
                "field_id": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "LoginResponse": {
            "type": "object",
            "properties": {"access_token": {"type": "string"}}
        },
        "EncryptedSubmission": {
            "type": "object",
            "required": ["encryptedContent", "responses"],
            "properties": {
                "encryptedContent": {"type": "string", "description": "<publicKey>;<nonce>:<ciphertext> в base64"},
                "responses": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "_id": {"type": "string"},
                            "question": {"type": "string"},
                            "fieldType": {"type": "string"},
                            "answer": {}
                        }
                    }
                },
                "attachments": {"type": "object"},
                "version": {"type": "integer"}
            }
        },
        "SubmitResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "submissionId": {"type": "string"},
                "stripeCheckoutSessionId": {"type": "string", "x-nullable": true}
            }
        }
    }
}`

// SwaggerInfo метаданные описания, версия подставляется при запуске сервера
var SwaggerInfo = &swag.Spec{
	Version:          "3.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "aiforms API",
	Description:      "Encrypted form submissions with Stripe checkout",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
