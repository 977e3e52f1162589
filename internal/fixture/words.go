package fixture

import "sort"

// Korean sample data for names, addresses and phone numbers.
var (
	lastNames  = []string{"김", "이", "박", "최", "정", "강", "조", "윤", "장", "임", "한", "오", "서", "신", "권", "황", "안", "송", "류", "전"}
	firstNames = []string{"민준", "서준", "도윤", "예준", "시우", "하준", "지호", "주원", "지우", "준우", "서연", "서윤", "서현", "하은", "민서", "지유", "윤서", "채원"}
	cities     = []string{"서울", "부산", "대구", "인천", "광주", "대전", "울산", "수원", "성남", "고양", "용인", "청주", "전주", "천안"}
	districts  = []string{"강남구", "서초구", "송파구", "종로구", "마포구", "영등포구", "관악구", "동작구", "강동구", "노원구", "은평구", "성북구"}
	streets    = []string{"테헤란로", "강남대로", "송파대로", "올림픽로", "한강대로", "세종대로", "을지로", "퇴계로", "충무로", "종로", "신촌로", "양화로"}
)

// englishToKorean drives titles and descriptions: English words are drawn
// and then translated, so text columns mix Hangul with untranslated words.
var englishToKorean = map[string]string{
	"Action": "액션", "Adventure": "모험", "Animation": "애니메이션",
	"Classics": "고전", "Comedy": "코미디", "Drama": "드라마",
	"Family": "가족", "Horror": "공포", "Music": "음악",
	"Sports": "스포츠", "Travel": "여행", "Story": "이야기",
	"Life": "인생", "World": "세계", "Hero": "영웅",
	"Friend": "친구", "Love": "사랑", "Dream": "꿈",
	"Memory": "기억", "Secret": "비밀", "Legend": "전설",
	"Future": "미래", "Journey": "여정", "Promise": "약속",
	"Beautiful": "아름다운", "Great": "위대한", "Dark": "어두운",
	"Lost": "잃어버린", "Golden": "황금빛", "Silent": "조용한",
	"Ancient": "고대의", "Modern": "현대의", "Perfect": "완벽한",
	"City": "도시", "Sea": "바다", "Mountain": "산",
	"Sky": "하늘", "Star": "별", "Garden": "정원",
	"Deluxe": "", "Edition": "", "Special": "",
}

var englishWords = func() []string {
	words := make([]string, 0, len(englishToKorean))
	for w := range englishToKorean {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}()
