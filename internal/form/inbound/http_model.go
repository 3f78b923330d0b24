package inbound

import "github.com/shandysiswandi/inboxed/internal/pkg/valueobject"

// SubmitRequest is the JSON body. Text fields accept any JSON value so a
// wrong type is reported per field instead of failing the whole body.
type SubmitRequest struct {
	Tenant  valueobject.JSON `json:"tenant" swaggertype:"string"`
	FormID  valueobject.JSON `json:"formId" swaggertype:"string"`
	Name    valueobject.JSON `json:"name" swaggertype:"string"`
	Email   valueobject.JSON `json:"email" swaggertype:"string"`
	Message valueobject.JSON `json:"message" swaggertype:"string"`
	Website valueobject.JSON `json:"website" swaggertype:"string"`
	Data    valueobject.JSON `json:"data"`
}

type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
