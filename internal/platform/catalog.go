// Package platform holds the static table of supported banner destinations.
package platform

type ID string

const (
	FacebookCover    ID = "facebook_cover"
	LinkedInPersonal ID = "linkedin_personal"
	LinkedInCompany  ID = "linkedin_company"
	GoogleBusiness   ID = "google_business"
	TwitterHeader    ID = "twitter_header"
	YouTubeChannel   ID = "youtube_channel"
	LinkedInEvent    ID = "linkedin_event"
	EmailSignature   ID = "email_signature"
	ZoomBackground   ID = "zoom_bg"
)

type Category string

const (
	CategorySocial   Category = "Social"
	CategoryBusiness Category = "Business"
	CategoryEvents   Category = "Events"
	CategoryMisc     Category = "Misc"
)

// Descriptor describes one destination format. Values handed out by this
// package are copies; the catalog itself never changes after init.
type Descriptor struct {
	ID          ID
	Label       string
	Category    Category
	AspectRatio string // one of the ratios the generation API accepts
	Description string
	TargetUsage string
	// SafeZoneInstruction is copied verbatim into prompts.
	SafeZoneInstruction string
}

var order = []ID{
	FacebookCover,
	LinkedInPersonal,
	LinkedInCompany,
	GoogleBusiness,
	TwitterHeader,
	YouTubeChannel,
	LinkedInEvent,
	EmailSignature,
	ZoomBackground,
}

var categoryOrder = []Category{
	CategorySocial,
	CategoryBusiness,
	CategoryEvents,
	CategoryMisc,
}

var descriptors = map[ID]Descriptor{
	FacebookCover: {
		ID:                  FacebookCover,
		Label:               "Facebook Cover",
		Category:            CategorySocial,
		AspectRatio:         "16:9",
		Description:         "Standard Facebook profile cover header.",
		TargetUsage:         "820x312 pixels (Approx 2.6:1)",
		SafeZoneInstruction: "16:9 Canvas. NEGATIVE SPACE RULE: The bottom-left area (approx 20% width) is STRICTLY FORBIDDEN. It must be empty background texture. DO NOT draw a circle, square, or fake profile picture.",
	},
	LinkedInPersonal: {
		ID:       LinkedInPersonal,
		Label:    "LinkedIn Personal",
		Category: CategoryBusiness,
		// The API has no 4:1 ratio; generate 16:9 and center the strip.
		AspectRatio:         "16:9",
		Description:         "Personal profile background banner.",
		TargetUsage:         "1584x396 pixels (Exact 4:1 Strip)",
		SafeZoneInstruction: "STRIP FORMAT: Design a thin horizontal strip in the vertical center. The top and bottom 25% of the image are 'bleed' area (plain background). DO NOT put a profile picture placeholder in the bottom left.",
	},
	LinkedInCompany: {
		ID:                  LinkedInCompany,
		Label:               "LinkedIn Company",
		Category:            CategoryBusiness,
		AspectRatio:         "16:9",
		Description:         "Company page header.",
		TargetUsage:         "1128x191 pixels (Approx 6:1 Strip)",
		SafeZoneInstruction: "EXTREME STRIP: Focus all content in the absolute vertical center. The top 35% and bottom 35% will be cropped out. NO UI ELEMENTS.",
	},
	GoogleBusiness: {
		ID:                  GoogleBusiness,
		Label:               "Google Business",
		Category:            CategoryBusiness,
		AspectRatio:         "16:9",
		Description:         "Google Maps/Search business profile cover.",
		TargetUsage:         "Standard 16:9 with center focus",
		SafeZoneInstruction: "Center all critical information. Keep text away from edges. Clean, photo-centric design.",
	},
	TwitterHeader: {
		ID:                  TwitterHeader,
		Label:               "X / Twitter",
		Category:            CategorySocial,
		AspectRatio:         "16:9",
		Description:         "Twitter profile header.",
		TargetUsage:         "1500x500 pixels (3:1 Strip)",
		SafeZoneInstruction: "OBSTRUCTION WARNING: The bottom-left is covered by the user's avatar. LEAVE THIS AREA EMPTY. Align all text to the RIGHT side. Do not draw a fake circle.",
	},
	YouTubeChannel: {
		ID:                  YouTubeChannel,
		Label:               "YouTube Channel",
		Category:            CategorySocial,
		AspectRatio:         "16:9",
		Description:         "YouTube Channel Art (TV size).",
		TargetUsage:         "2560x1440 (TV) -> 1546x423 (Mobile/Desktop Safe Area)",
		SafeZoneInstruction: "YOUTUBE SPECIFIC: The 'Mobile Safe Area' is a thin strip in the DEAD CENTER (1546x423). Visualize a 'Banner within a Banner'. All Text, Logo, and Faces MUST be inside this center strip. The top and bottom huge areas are just decorative background wallpaper for TV apps. Make the center strip pop.",
	},
	LinkedInEvent: {
		ID:                  LinkedInEvent,
		Label:               "LinkedIn Event",
		Category:            CategoryEvents,
		AspectRatio:         "16:9",
		Description:         "Header for a LinkedIn Event page.",
		TargetUsage:         "16:9 Standard",
		SafeZoneInstruction: "Standard 16:9 layout. Keep margins of 10% on all sides.",
	},
	EmailSignature: {
		ID:                  EmailSignature,
		Label:               "Email Signature",
		Category:            CategoryMisc,
		AspectRatio:         "16:9",
		Description:         "Wide email footer graphic.",
		TargetUsage:         "600x150 pixels (4:1 Strip)",
		SafeZoneInstruction: "LETTERBOX DESIGN: Design a wide, short strip in the exact vertical center of the 16:9 canvas. The top and bottom thirds must be solid/clean background for easy cropping.",
	},
	ZoomBackground: {
		ID:                  ZoomBackground,
		Label:               "Zoom/Teams BG",
		Category:            CategoryMisc,
		AspectRatio:         "16:9",
		Description:         "Virtual meeting background.",
		TargetUsage:         "1920x1080 (16:9)",
		SafeZoneInstruction: "The user sits in the center. Place Logos in top-left/top-right corners. Place Headlines in the top center or sides. The middle-bottom is obstructed by the person.",
	},
}

func Lookup(id ID) (Descriptor, bool) {
	d, ok := descriptors[id]
	return d, ok
}

// All returns every descriptor in display order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(order))
	for _, id := range order {
		out = append(out, descriptors[id])
	}
	return out
}

func IDs() []ID {
	return append([]ID(nil), order...)
}

func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

func ByCategory(cat Category) []Descriptor {
	var out []Descriptor
	for _, id := range order {
		if d := descriptors[id]; d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Position returns the display index of id, or -1 when it is not in the catalog.
func Position(id ID) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}
