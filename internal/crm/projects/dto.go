package projects

import "time"

type CreateProjectRequest struct {
	ClientID    int64      `json:"client_id" validate:"required,gt=0"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=planned active on_hold completed"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type ListProjectsRequest struct {
	ClientID int64  `json:"client_id" validate:"gte=0"`
	Status   string `json:"status" validate:"omitempty,oneof=planned active on_hold completed"`
	Limit    int    `json:"limit" validate:"gte=0,lte=200"`
	Offset   int    `json:"offset" validate:"gte=0"`
}

type ListProjectsResponse struct {
	Data   []Project `json:"data"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}
