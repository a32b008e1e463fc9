// Package docs expone el documento OpenAPI servido en /swagger/doc.json.
// Se mantiene a mano y compacto: los contratos finos viven en los handlers.
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
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/session": {
            "get": {
                "summary": "Snapshot de la sesión del navegador",
                "responses": {"200": {"description": "snapshot"}}
            }
        },
        "/session/hydrate": {
            "post": {
                "summary": "Rehidrata la sesión desde el proveedor externo",
                "responses": {"200": {"description": "snapshot"}}
            }
        },
        "/session/logout": {
            "post": {
                "summary": "Cierra la sesión",
                "responses": {"204": {"description": "sin contenido"}}
            }
        },
        "/auth/login": {
            "post": {
                "summary": "Login con credenciales; puede devolver gating (2FA o cédula)",
                "responses": {
                    "200": {"description": "estado del flujo"},
                    "422": {"description": "credenciales rechazadas"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "summary": "Registro de veterinario",
                "responses": {"200": {"description": "estado del flujo"}}
            }
        },
        "/auth/2fa": {
            "post": {
                "summary": "Confirma el código 2FA pendiente",
                "responses": {"200": {"description": "estado del flujo"}}
            }
        },
        "/cedula/verify": {
            "post": {
                "summary": "Verifica la cédula profesional (multipart, documento opcional)",
                "responses": {
                    "200": {"description": "resultado"},
                    "404": {"description": "sin flujo activo"}
                }
            }
        },
        "/cedula/skip": {
            "post": {
                "summary": "Omite la verificación (tope acotado por el servidor)",
                "responses": {
                    "200": {"description": "resultado"},
                    "403": {"description": "omisiones agotadas"}
                }
            }
        },
        "/consultations": {
            "get": {
                "summary": "Historial de consultas",
                "responses": {"200": {"description": "lista"}}
            },
            "post": {
                "summary": "Paso 1 del wizard: crea el borrador",
                "responses": {"201": {"description": "consulta creada"}}
            }
        },
        "/consultations/{id}": {
            "get": {
                "summary": "Detalle de consulta",
                "responses": {"200": {"description": "consulta"}}
            },
            "put": {
                "summary": "Paso 2 del wizard: actualiza el payload",
                "responses": {"200": {"description": "consulta"}}
            }
        },
        "/consultations/{id}/analyze": {
            "post": {
                "summary": "Dispara el análisis clínico",
                "responses": {
                    "200": {"description": "consulta con análisis"},
                    "402": {"description": "requiere membresía o consultas disponibles"}
                }
            }
        },
        "/membership/packages": {
            "get": {
                "summary": "Catálogo de paquetes de membresía",
                "responses": {"200": {"description": "lista"}}
            }
        },
        "/membership/payment/confirm": {
            "post": {
                "summary": "Polling del checkout pendiente tras el retorno del pago",
                "responses": {"200": {"description": "desenlace del polling"}}
            }
        },
        "/view": {
            "get": {
                "summary": "Resuelve la vista actual; consume deep links y redirige 303",
                "responses": {
                    "200": {"description": "vista"},
                    "303": {"description": "URL limpia"}
                }
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Vet Clinical Support API",
	Description:      "BFF de soporte clínico veterinario",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
