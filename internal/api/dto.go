package api

type createEnrollmentRequest struct {
	StudentID string   `json:"student_id" binding:"required,max=64"`
	CourseID  string   `json:"course_id" binding:"required,max=64"`
	Amount    *float64 `json:"amount" binding:"omitempty,gte=0"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type serviceDescriptor struct {
	Service   string   `json:"service"`
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
}
