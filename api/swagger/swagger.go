package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Enrollment API",
        "description": "Class enrollment with per-class waitlists and automatic promotion",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Students", "description": "Class browsing, enrollment and waitlists of the caller"},
        {"name": "Instructors", "description": "Rosters and waitlists of owned classes"},
        {"name": "Registrar", "description": "Class administration and invariant audit"}
    ],
    "paths": {
        "/classes": {
            "get": {
                "tags": ["Students"],
                "summary": "List classes with free seats",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Students"],
                "summary": "Enroll in a class",
                "description": "A full class places the caller on its waitlist and answers 202 with meta code CLASS_FULL_PLACED_ON_WAITLIST.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Waitlisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class or student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{classId}": {
            "delete": {
                "tags": ["Students"],
                "summary": "Drop a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Dropped", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/waitlists": {
            "get": {
                "tags": ["Students"],
                "summary": "List the caller's waitlists",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/waitlists/{classId}": {
            "get": {
                "tags": ["Students"],
                "summary": "Waitlist position in a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not on the waitlist", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Leave a class waitlist",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Withdrawn"},
                    "404": {"description": "Not on the waitlist", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructor/classes": {
            "get": {
                "tags": ["Instructors"],
                "summary": "Classes taught by the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructor/classes/{classId}/waitlist": {
            "get": {
                "tags": ["Instructors"],
                "summary": "Ordered waitlist of an owned class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructor/classes/{classId}/dropped": {
            "get": {
                "tags": ["Instructors"],
                "summary": "Students who dropped an owned class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructor/classes/{classId}/roster": {
            "get": {
                "tags": ["Instructors"],
                "summary": "Active roster of an owned class",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/instructor/classes/{classId}/students/{studentId}": {
            "delete": {
                "tags": ["Instructors"],
                "summary": "Administratively drop a student",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Dropped", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrar/classes": {
            "post": {
                "tags": ["Registrar"],
                "summary": "Create a class section",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate section", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrar/classes/{classId}": {
            "delete": {
                "tags": ["Registrar"],
                "summary": "Delete a class with its enrollments and waitlist",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/registrar/classes/{classId}/instructor": {
            "put": {
                "tags": ["Registrar"],
                "summary": "Reassign a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeInstructorRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrar/classes/{classId}/freeze": {
            "put": {
                "tags": ["Registrar"],
                "summary": "Freeze automatic enrollment",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already frozen", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrar/classes/{classId}/unfreeze": {
            "put": {
                "tags": ["Registrar"],
                "summary": "Unfreeze automatic enrollment and fill free seats from the waitlist",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not frozen", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrar/enrollments": {
            "post": {
                "tags": ["Registrar"],
                "summary": "Enroll a student on their behalf",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegistrarEnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Waitlisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrar/consistency": {
            "get": {
                "tags": ["Registrar"],
                "summary": "Audit enrollment invariants",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "classId": {"type": "string"}
            },
            "required": ["classId"]
        },
        "RegistrarEnrollRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "classId": {"type": "string"}
            },
            "required": ["studentId", "classId"]
        },
        "CreateClassRequest": {
            "type": "object",
            "properties": {
                "department": {"type": "string"},
                "courseCode": {"type": "string"},
                "sectionNumber": {"type": "integer"},
                "className": {"type": "string"},
                "instructorId": {"type": "string"},
                "maxEnrollment": {"type": "integer"}
            },
            "required": ["department", "courseCode", "sectionNumber", "className", "instructorId"]
        },
        "ChangeInstructorRequest": {
            "type": "object",
            "properties": {
                "instructorId": {"type": "string"}
            },
            "required": ["instructorId"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
