package dto

type RegisterTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	StudentUID string `json:"student_uid" binding:"required"`
	BandID     string `json:"band_id" binding:"required"`
	Platform   string `json:"platform" binding:"required,oneof=ios android"`
}
