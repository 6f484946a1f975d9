// Package mapper converts engine results into API schemas.
package mapper

import (
	"github.com/kevgathuku/server/pkg/models"
	"github.com/kevgathuku/server/pkg/schemas"
	"github.com/kevgathuku/server/pkg/share"
)

func ToShareOut(item *share.Item) *schemas.ShareOut {
	out := &schemas.ShareOut{
		Id:               item.ID,
		ItemType:         item.ItemType,
		ItemSource:       item.ItemSource,
		ItemTarget:       item.ItemTarget,
		FileTarget:       item.FileTarget,
		Path:             item.Path,
		ShareType:        int(item.Share.ShareType),
		ShareTypeName:    item.Share.ShareType.String(),
		ShareWith:        item.ShareWith,
		DisplayShareWith: item.DisplayShareWith,
		Owner:            item.Owner,
		DisplayOwner:     item.DisplayOwner,
		Permissions:      uint(item.Permissions),
		ShareTime:        item.ShareTime,
		Token:            item.Token,
		ExpireDate:       item.Expiration,
		Protected:        item.Password != nil,
		MailSend:         item.MailSend,
	}
	return out
}

func ToShareOuts(items []*share.Item) []*schemas.ShareOut {
	out := make([]*schemas.ShareOut, len(items))
	for i, item := range items {
		out[i] = ToShareOut(item)
	}
	return out
}

func ToTokenShare(row *models.Share) *schemas.TokenShare {
	return &schemas.TokenShare{
		Id:         row.ID,
		ItemType:   row.ItemType,
		ItemSource: row.ItemSource,
		Owner:      row.Owner,
		FileTarget: row.FileTarget,
		ExpireDate: row.Expiration,
		Protected:  row.Password != nil,
	}
}
