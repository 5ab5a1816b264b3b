// Package activable provides soft delete ("logical removal") for GORM models.
//
// A model adopts the behavior by embedding one of the two markers:
//
//	type Post struct {
//	    ID       int64 `gorm:"primaryKey"`
//	    Comments []Comment
//	    activable.Marker         // default-scoped: removed rows vanish from queries
//	}
//
//	type Comment struct {
//	    ID     int64 `gorm:"primaryKey"`
//	    PostID int64
//	    activable.ExplicitMarker // explicit-scoped: use Alive to hide removed rows
//	}
//
// Rows are removed through a Repository, which runs the removal protocol
// inside one transaction: before hooks, observer notification, cascade to
// dependent collections, the removed_at write, observer notification and
// after hooks. Any error rolls the whole cascade back.
//
//	comments, _ := activable.NewRepository[Comment](db)
//	posts, _ := activable.NewRepository[Post](db,
//	    activable.WithAssociations(activable.Association{
//	        Name: "Comments", Policy: activable.CascadeRemoval, Target: comments,
//	    }))
//	err := posts.Remove(ctx, post)
//
// Register the Protect plugin on the *gorm.DB to reject ordinary writes to
// the removed_at column.
package activable
