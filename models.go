package gallery

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the caller identity resolved by the transport layer.
type User struct {
	ID   int64
	Role Role
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type ReviewStatus int

const (
	ReviewPending ReviewStatus = iota
	ReviewPass
	ReviewReject
)

func (s ReviewStatus) Valid() bool {
	return s >= ReviewPending && s <= ReviewReject
}

func (s ReviewStatus) String() string {
	switch s {
	case ReviewPending:
		return "pending"
	case ReviewPass:
		return "pass"
	case ReviewReject:
		return "reject"
	default:
		return "unknown"
	}
}

type SpaceLevel int

const (
	SpaceLevelCommon SpaceLevel = iota
	SpaceLevelProfessional
	SpaceLevelFlagship
)

type SpaceLevelQuota struct {
	Level    SpaceLevel `json:"value"`
	Name     string     `json:"text"`
	MaxCount int64      `json:"maxCount"`
	MaxSize  int64      `json:"maxSize"`
}

const mb = 1024 * 1024

var spaceLevelQuotas = []SpaceLevelQuota{
	{Level: SpaceLevelCommon, Name: "common", MaxCount: 100, MaxSize: 100 * mb},
	{Level: SpaceLevelProfessional, Name: "professional", MaxCount: 1000, MaxSize: 1000 * mb},
	{Level: SpaceLevelFlagship, Name: "flagship", MaxCount: 10000, MaxSize: 10000 * mb},
}

func (l SpaceLevel) Valid() bool {
	return l >= SpaceLevelCommon && l <= SpaceLevelFlagship
}

func (l SpaceLevel) Quota() SpaceLevelQuota {
	return spaceLevelQuotas[l]
}

// SpaceLevels lists every level with its preset quota.
func SpaceLevels() []SpaceLevelQuota {
	return append([]SpaceLevelQuota(nil), spaceLevelQuotas...)
}

// Asset is a stored picture and its metadata.
type Asset struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	URL          string `gorm:"size:1024;not null;index" json:"url"`
	ThumbnailURL string `gorm:"size:1024" json:"thumbnailUrl"`
	DownloadURL  string `gorm:"size:1024" json:"downloadUrl"`

	Name         string   `gorm:"size:128;index" json:"name"`
	Introduction string   `gorm:"size:800" json:"introduction"`
	Category     string   `gorm:"size:64;index" json:"category"`
	Tags         []string `gorm:"type:text;serializer:json" json:"tags"`

	PicSize   int64   `json:"picSize"`
	PicWidth  int     `json:"picWidth"`
	PicHeight int     `json:"picHeight"`
	PicScale  float64 `json:"picScale"`
	PicFormat string  `gorm:"size:32" json:"picFormat"`

	UserID  int64  `gorm:"not null;index" json:"userId"`
	SpaceID *int64 `gorm:"index" json:"spaceId"`

	ReviewStatus  ReviewStatus `gorm:"not null;index" json:"reviewStatus"`
	ReviewMessage string       `gorm:"size:512" json:"reviewMessage"`
	ReviewerID    *int64       `json:"reviewerId"`
	ReviewTime    *time.Time   `json:"reviewTime"`

	EditTime  time.Time `json:"editTime"`
	CreatedAt time.Time `json:"createTime"`
	UpdatedAt time.Time `json:"updateTime"`
}

func (Asset) TableName() string {
	return "pictures"
}

func (a Asset) InSpace() bool {
	return a.SpaceID != nil && *a.SpaceID > 0
}

// Space is a quota bound container of assets, at most one per user.
type Space struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string     `gorm:"size:64" json:"spaceName"`
	Level      SpaceLevel `gorm:"not null" json:"spaceLevel"`
	MaxCount   int64      `gorm:"not null" json:"maxCount"`
	MaxSize    int64      `gorm:"not null" json:"maxSize"`
	TotalCount int64      `gorm:"not null;default:0" json:"totalCount"`
	TotalSize  int64      `gorm:"not null;default:0" json:"totalSize"`
	UserID     int64      `gorm:"not null;uniqueIndex" json:"userId"`

	EditTime  time.Time `json:"editTime"`
	CreatedAt time.Time `json:"createTime"`
	UpdatedAt time.Time `json:"updateTime"`
}

func (Space) TableName() string {
	return "spaces"
}

// HasRoomFor reports whether one more asset of size bytes fits into the space.
func (s Space) HasRoomFor(size int64) bool {
	return s.TotalCount+1 <= s.MaxCount && s.TotalSize+size <= s.MaxSize
}

// AssetQuery selects a page of assets. The structs tags name the fields of
// the canonical form used for cache keys.
type AssetQuery struct {
	Current   int    `json:"current" structs:"current"`
	PageSize  int    `json:"pageSize" structs:"pageSize"`
	SortField string `json:"sortField" structs:"sortField"`
	SortOrder string `json:"sortOrder" structs:"sortOrder"`

	ID           int64    `json:"id" structs:"id"`
	Name         string   `json:"name" structs:"name"`
	Introduction string   `json:"introduction" structs:"introduction"`
	Category     string   `json:"category" structs:"category"`
	Tags         []string `json:"tags" structs:"tags"`
	SearchText   string   `json:"searchText" structs:"searchText"`

	PicSize   int64   `json:"picSize" structs:"picSize"`
	PicWidth  int     `json:"picWidth" structs:"picWidth"`
	PicHeight int     `json:"picHeight" structs:"picHeight"`
	PicScale  float64 `json:"picScale" structs:"picScale"`
	PicFormat string  `json:"picFormat" structs:"picFormat"`

	UserID      int64 `json:"userId" structs:"userId"`
	SpaceID     int64 `json:"spaceId" structs:"spaceId"`
	NullSpaceID bool  `json:"nullSpaceId" structs:"nullSpaceId"`

	ReviewStatus  *ReviewStatus `json:"reviewStatus" structs:"reviewStatus"`
	ReviewMessage string        `json:"reviewMessage" structs:"reviewMessage"`
	ReviewerID    int64         `json:"reviewerId" structs:"reviewerId"`

	StartEditTime *time.Time `json:"startEditTime" structs:"startEditTime,omitnested"`
	EndEditTime   *time.Time `json:"endEditTime" structs:"endEditTime,omitnested"`
}

type Page struct {
	Current  int     `json:"current"`
	PageSize int     `json:"size"`
	Total    int64   `json:"total"`
	Records  []Asset `json:"records"`
}

type UploadRequest struct {
	// ID replaces an existing asset when set.
	ID       int64    `json:"id" form:"id"`
	SpaceID  int64    `json:"spaceId" form:"spaceId"`
	Name     string   `json:"picName" form:"picName"`
	Category string   `json:"category" form:"category"`
	Tags     []string `json:"tags" form:"tags"`
	FileURL  string   `json:"fileUrl" form:"fileUrl"`
}

type EditRequest struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Introduction string   `json:"introduction"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
}

type ReviewRequest struct {
	ID            int64        `json:"id"`
	ReviewStatus  ReviewStatus `json:"reviewStatus"`
	ReviewMessage string       `json:"reviewMessage"`
}

type BatchRequest struct {
	SearchText string   `json:"searchText"`
	Offset     int      `json:"offset"`
	Count      int      `json:"count"`
	NamePrefix string   `json:"namePrefix"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
}

type SpaceAddRequest struct {
	Name  string     `json:"spaceName"`
	Level SpaceLevel `json:"spaceLevel"`
}

type SpaceResizeRequest struct {
	ID       int64       `json:"id"`
	Name     string      `json:"spaceName"`
	Level    *SpaceLevel `json:"spaceLevel"`
	MaxCount int64       `json:"maxCount"`
	MaxSize  int64       `json:"maxSize"`
}
