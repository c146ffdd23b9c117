package model

import (
	"fmt"
	"net/url"
)

// WorldInfo is the world block nested inside a group instance record,
// as returned by the VRChat API. Read-only.
type WorldInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ThumbnailImageURL string `json:"thumbnailImageUrl"`
}

// GroupInstance is one live instance of a world scoped to a group.
// Fetched fresh every poll, never persisted.
type GroupInstance struct {
	InstanceID  string    `json:"instanceId"`
	Location    string    `json:"location"`
	MemberCount int       `json:"memberCount"`
	World       WorldInfo `json:"world"`
}

// LaunchURL builds the deep link that opens this instance in VRChat.
func (gi GroupInstance) LaunchURL() string {
	return fmt.Sprintf("https://vrchat.com/home/launch?worldId=%s&instanceId=%s",
		url.QueryEscape(gi.World.ID), url.QueryEscape(gi.InstanceID))
}
